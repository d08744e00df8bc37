package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidAudience is returned when a token is not addressed to the engine.
	ErrInvalidAudience = errors.New("invalid token audience")
	// ErrUnknownIssuer is returned when a token's issuer has no configured JWKS endpoint.
	ErrUnknownIssuer = errors.New("unauthorized issuer")
)

// clockSkew tolerated on exp/nbf between the identity provider and the engine.
const clockSkew = 30 * time.Second

var signingMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// JWKSClientInterface validates bearer tokens.
type JWKSClientInterface interface {
	ValidateToken(tokenString string) (*Claims, error)
	Close()
}

// JWKSConfig contains configuration for the JWKS client.
type JWKSConfig struct {
	// EnableVerification=false parses tokens without checking signatures.
	// The audience is still enforced. Local development only.
	EnableVerification bool
	// JWKSEndpoints maps each trusted issuer to its JWKS URL.
	JWKSEndpoints map[string]string
}

// JWKSClient validates tokens against the key sets of trusted issuers.
type JWKSClient struct {
	verify  bool
	issuers map[string]keyfunc.Keyfunc
	parser  *jwt.Parser
	cancel  context.CancelFunc
}

// NewJWKSClient fetches the key set of every configured issuer. Key sets are
// refreshed in the background until Close is called.
func NewJWKSClient(config *JWKSConfig) (*JWKSClient, error) {
	ctx, cancel := context.WithCancel(context.Background())
	client := newJWKSClient(config.EnableVerification, make(map[string]keyfunc.Keyfunc, len(config.JWKSEndpoints)))
	client.cancel = cancel

	if !client.verify {
		return client, nil
	}

	for issuer, jwksURL := range config.JWKSEndpoints {
		kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create JWKS client for issuer %s: %w", issuer, err)
		}
		client.issuers[issuer] = kf
	}
	return client, nil
}

func newJWKSClient(verify bool, issuers map[string]keyfunc.Keyfunc) *JWKSClient {
	return &JWKSClient{
		verify:  verify,
		issuers: issuers,
		parser: jwt.NewParser(
			jwt.WithValidMethods(signingMethods),
			jwt.WithAudience(Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
		cancel: func() {},
	}
}

// ValidateToken returns the claims of a token addressed to the engine.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if c.verify {
		return c.parseVerified(tokenString)
	}
	return parseUnverified(tokenString)
}

func (c *JWKSClient) parseVerified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kf, ok := c.issuers[claims.Issuer]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownIssuer, claims.Issuer)
		}
		return kf.Keyfunc(token)
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return nil, ErrInvalidAudience
	default:
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
}

func parseUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !slices.Contains(claims.Audience, Audience) {
		return nil, ErrInvalidAudience
	}
	return claims, nil
}

// Close stops background key set refreshes.
func (c *JWKSClient) Close() {
	c.cancel()
}

var _ JWKSClientInterface = (*JWKSClient)(nil)
