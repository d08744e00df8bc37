// Package testhelpers provides fixtures shared by the engine's package tests:
// containerised PostgreSQL and Redis, and development-mode tokens.
package testhelpers

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
)

// GenerateTestJWT returns an unsigned (alg=none) token addressed to the
// engine. It is only accepted when signature verification is disabled.
func GenerateTestJWT(sub, tenantID string, roles ...string) string {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{auth.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: tenantID,
		Roles:    roles,
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		panic(err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + enc.EncodeToString(payload) + "."
}

// GenerateTestJWTWithBearer returns an Authorization header value for GenerateTestJWT.
func GenerateTestJWTWithBearer(sub, tenantID string, roles ...string) string {
	return "Bearer " + GenerateTestJWT(sub, tenantID, roles...)
}
