package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrMissingTenantID      = errors.New("token does not carry a valid tenant ID")
	ErrMissingRole          = errors.New("required role not present in token")
)

// AuthService authenticates API requests.
type AuthService interface {
	// Authenticate validates the bearer token on r and returns its claims.
	// Tokens without a UUID "tid" claim fail with ErrMissingTenantID.
	Authenticate(r *http.Request) (*Claims, error)

	// RequireRole returns ErrMissingRole unless claims carry role.
	RequireRole(claims *Claims, role string) error
}

type authService struct {
	jwksClient JWKSClientInterface
	logger     *zap.Logger
}

func NewAuthService(jwksClient JWKSClientInterface, logger *zap.Logger) AuthService {
	return &authService{
		jwksClient: jwksClient,
		logger:     logger.Named("auth"),
	}
}

func (s *authService) Authenticate(r *http.Request) (*Claims, error) {
	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		s.logger.Debug("Rejected authorization header",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, err
	}

	claims, err := s.jwksClient.ValidateToken(token)
	if err != nil {
		s.logger.Debug("Token rejected", zap.String("path", r.URL.Path), zap.Error(err))
		return nil, err
	}

	if tenantID, err := uuid.Parse(claims.TenantID); err != nil || tenantID == uuid.Nil {
		s.logger.Warn("Token without usable tenant",
			zap.String("subject", claims.Subject),
			zap.String("issuer", claims.Issuer))
		return nil, ErrMissingTenantID
	}
	return claims, nil
}

// bearerToken extracts the credentials of a "Bearer" Authorization header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidAuthFormat
	}
	return token, nil
}

func (s *authService) RequireRole(claims *Claims, role string) error {
	if claims.HasRole(role) {
		return nil
	}
	s.logger.Warn("Required role missing",
		zap.String("subject", claims.Subject),
		zap.String("tenant_id", claims.TenantID),
		zap.String("role", role))
	return ErrMissingRole
}

var _ AuthService = (*authService)(nil)
