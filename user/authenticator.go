// Package user extracts the calling principal from a bearer JWT.
package user

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/provider"
)

const (
	// Tokens without an expiry are remembered for this long.
	defaultTokenCacheExpiration = 5 * time.Minute
	tokenCacheCleanupInterval   = 10 * time.Minute

	bearerPrefix = "Bearer "
)

var (
	ErrInvalidAuthorizationHeader = errors.New("invalid Authorization header format")
	ErrInvalidToken               = errors.New("invalid or malformed JWT")
	ErrInvalidIssuer              = errors.New("invalid token issuer")
	ErrSubjectNotFound            = errors.New("subject not found in token claims")
)

// Authenticator verifies HS256 bearer tokens and maps their subject onto a
// provider.Principal. Requests without an Authorization header are anonymous.
type Authenticator struct {
	logger polylog.Logger
	secret []byte
	issuer string

	// verified maps raw tokens to their principal until the token expires.
	verified *cache.Cache
}

func NewAuthenticator(logger polylog.Logger, secret []byte, issuer string) *Authenticator {
	return &Authenticator{
		logger:   logger.With("component", "authenticator"),
		secret:   append([]byte(nil), secret...),
		issuer:   issuer,
		verified: cache.New(defaultTokenCacheExpiration, tokenCacheCleanupInterval),
	}
}

// Authenticate returns the principal of the request.
func (a *Authenticator) Authenticate(req *http.Request) (provider.Principal, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return provider.Anonymous, nil
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrInvalidAuthorizationHeader
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

	if p, ok := a.verified.Get(token); ok {
		return p.(provider.Principal), nil
	}

	principal, expiresAt, err := a.parse(token)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Rejected bearer token.")
		return "", err
	}

	ttl := cache.DefaultExpiration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
	}
	a.verified.Set(token, principal, ttl)
	return principal, nil
}

func (a *Authenticator) parse(tokenString string) (provider.Principal, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if a.issuer != "" && claims.Issuer != a.issuer {
		return "", time.Time{}, ErrInvalidIssuer
	}
	if claims.Subject == "" || provider.Principal(claims.Subject) == provider.Anonymous {
		return "", time.Time{}, ErrSubjectNotFound
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return provider.Principal(claims.Subject), expiresAt, nil
}
