// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity from a bearer token. A request
// without an Authorization header proceeds as the anonymous principal; a
// malformed, expired or forged token is rejected with 401 so clients notice
// stale credentials instead of silently losing their per-user flags.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

const (
	// principalKey stores the resolved domain.Principal in the Gin context.
	principalKey = "principal"
	// userIDKey stores the authenticated user id (int64) for logging and
	// rate limiting. It is absent for anonymous requests.
	userIDKey = "userID"
)

// TokenParser turns a raw bearer token into a principal.
type TokenParser interface {
	Parse(raw string) (domain.Principal, error)
}

// Authenticate resolves the principal for each request.
//
// Accepted header forms are "Authorization: Bearer <jwt>" and, for parity
// with token-auth clients, "Authorization: Token <jwt>".
func Authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, present := bearer(c.GetHeader("Authorization"))
		if !present {
			c.Set(principalKey, domain.Anonymous)
			c.Next()
			return
		}
		p, err := tokens.Parse(raw)
		if err != nil || !p.Authenticated() {
			c.Header("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "invalid or expired token",
			})
			return
		}
		c.Set(principalKey, p)
		c.Set(userIDKey, p.UserID)
		c.Next()
	}
}

// PrincipalFrom returns the principal resolved by Authenticate, or the
// anonymous principal when none was set.
func PrincipalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Anonymous
}

// SetPrincipal stores p on the context. Tests and internal callers use it to
// bypass token parsing.
func SetPrincipal(c *gin.Context, p domain.Principal) {
	c.Set(principalKey, p)
	if p.Authenticated() {
		c.Set(userIDKey, p.UserID)
	}
}

// userIDFromCtx returns the authenticated user id, or 0 when anonymous.
func userIDFromCtx(c *gin.Context) int64 {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// bearer extracts the credential from an Authorization header value. The
// second result reports whether the header was present at all.
func bearer(h string) (string, bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return "", false
	}
	scheme, cred, ok := strings.Cut(h, " ")
	if !ok {
		return "", true
	}
	switch strings.ToLower(scheme) {
	case "bearer", "token":
		return strings.TrimSpace(cred), true
	}
	return "", true
}
