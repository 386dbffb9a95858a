// Package auth issues and verifies the bearer tokens that identify API
// callers. Tokens are HS256 JWTs carrying the user ID and an admin flag;
// verification yields a domain.Principal that handlers pass to services.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. The subject holds the decimal user ID.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwtlib.RegisteredClaims
}

// TokenService signs and verifies tokens with a shared secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string

	now func() time.Time
}

// NewTokenService returns a TokenService. ttl applies to issued tokens.
func NewTokenService(secret string, ttl time.Duration, issuer string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue mints a token for userID.
func (s *TokenService) Issue(userID int64, admin bool) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("auth: invalid user id %d", userID)
	}
	now := s.now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the principal it identifies.
func (s *TokenService) Parse(raw string) (domain.Principal, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}

	var claims Claims
	token, err := jwtlib.ParseWithClaims(raw, &claims, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.Anonymous, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.Anonymous, ErrInvalidToken
	}
	return domain.Principal{UserID: id, Admin: claims.Admin}, nil
}
