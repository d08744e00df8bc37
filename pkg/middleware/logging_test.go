package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/keystone-uw/underwriting-engine/pkg/metrics"
)

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func statusHandler(codes ...int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, code := range codes {
			w.WriteHeader(code)
		}
	})
}

func TestRequestLogger_LogLevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		codes     []int
		wantLevel zapcore.Level
		want      int64
	}{
		{"ok", []int{http.StatusOK}, zap.DebugLevel, 200},
		{"client error", []int{http.StatusConflict}, zap.DebugLevel, 409},
		{"server error", []int{http.StatusServiceUnavailable}, zap.WarnLevel, 503},
		{"first status wins", []int{http.StatusBadRequest, http.StatusInternalServerError}, zap.DebugLevel, 400},
		{"implicit ok", nil, zap.DebugLevel, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)

			rec := serve(t, RequestLogger(zap.New(core), nil)(statusHandler(tt.codes...)),
				httptest.NewRequest(http.MethodPost, "/api/submissions", nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, tt.want, entry.ContextMap()["status"])
			assert.Equal(t, "unmatched", entry.ContextMap()["route"])
			assert.Equal(t, int(tt.want), rec.Code)
		})
	}
}

func TestRequestLogger_AssignsRequestID(t *testing.T) {
	var seen string
	h := RequestLogger(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger_KeepsInboundRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := RequestLogger(zap.New(core), nil)(statusHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "portal-7f3a")
	rec := serve(t, h, req)

	assert.Equal(t, "portal-7f3a", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "portal-7f3a", logs.All()[0].ContextMap()["request_id"])
}

func TestRequestLogger_ReplacesOversizedRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))

	rec := serve(t, RequestLogger(nil, nil)(statusHandler()), req)

	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := metrics.New(prometheus.NewRegistry())

	mux := http.NewServeMux()
	mux.Handle("POST /api/submissions/{sid}/clearance", statusHandler(http.StatusNotFound))
	h := RequestLogger(zap.New(core), m)(mux)

	serve(t, h, httptest.NewRequest(http.MethodPost, "/api/submissions/abc/clearance", nil))
	serve(t, h, httptest.NewRequest(http.MethodPost, "/api/submissions/def/clearance", nil))

	const route = "POST /api/submissions/{sid}/clearance"
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", route, "4xx")))
	assert.Equal(t, route, logs.All()[0].ContextMap()["route"])
	assert.Equal(t, "/api/submissions/abc/clearance", logs.All()[0].ContextMap()["path"])
}

func TestStatusRecorder_IgnoresSecondWriteHeader(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: inner, status: http.StatusOK}

	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError)
	_, err := rec.Write([]byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.status)
	assert.Equal(t, http.StatusCreated, inner.Code)
}
