package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// securedRouter serves GET and POST /api/recipes behind SecurityHeaders.
// Requests carrying X-Test-User are treated as authenticated.
func securedRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-User") != "" {
			SetPrincipal(c, domain.Principal{UserID: 3})
		}
		c.Next()
	})
	r.Use(SecurityHeaders(opt))
	r.GET("/api/recipes", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"count": 0}) })
	r.POST("/api/recipes", func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r
}

func serve(r *gin.Engine, req *http.Request) http.Header {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serve(securedRouter(SecurityOptions{}), httptest.NewRequest(http.MethodGet, "/api/recipes", nil))

	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.Empty(t, h.Get("Permissions-Policy"))
	assert.Empty(t, h.Get("Strict-Transport-Security"))
	assert.Empty(t, h.Get("Cache-Control"), "anonymous reads without PublicMaxAge are left alone")
}

func TestSecurityHeaders_Policy(t *testing.T) {
	h := serve(securedRouter(SecurityOptions{EnablePolicy: true}), httptest.NewRequest(http.MethodGet, "/api/recipes", nil))

	assert.Contains(t, h.Get("Permissions-Policy"), "camera=()")
	assert.Equal(t, "none", h.Get("X-Permitted-Cross-Domain-Policies"))
}

func TestSecurityHeaders_CachePolicy(t *testing.T) {
	opt := SecurityOptions{PrivateWhenAuthorized: true, PublicMaxAge: 90 * time.Second}
	r := securedRouter(opt)

	cases := []struct {
		name   string
		method string
		user   bool
		want   string
	}{
		{"anonymous catalog read", http.MethodGet, false, "public, max-age=90"},
		{"authenticated read", http.MethodGet, true, "private, no-store"},
		{"authenticated write", http.MethodPost, true, "private, no-store"},
		{"anonymous write", http.MethodPost, false, "no-store"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/recipes", nil)
			if tc.user {
				req.Header.Set("X-Test-User", "3")
			}
			h := serve(r, req)
			assert.Equal(t, tc.want, h.Get("Cache-Control"))
			assert.Equal(t, "Authorization", h.Get("Vary"))
		})
	}
}

func TestSecurityHeaders_AuthenticatedWithoutPrivateFlag(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/recipes", nil)
	req.Header.Set("X-Test-User", "3")
	h := serve(securedRouter(SecurityOptions{PublicMaxAge: time.Minute}), req)

	assert.Equal(t, "public, max-age=60", h.Get("Cache-Control"))
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	t.Run("tls with explicit max age", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes", nil)
		req.TLS = &tls.ConnectionState{}
		h := serve(securedRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour}), req)
		assert.Equal(t, "max-age=86400; includeSubDomains; preload", h.Get("Strict-Transport-Security"))
	})

	t.Run("proxy header with default max age", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes", nil)
		req.Header.Set("X-Forwarded-Proto", "HTTPS")
		h := serve(securedRouter(SecurityOptions{EnableHSTS: true}), req)
		assert.Equal(t, "max-age=15552000; includeSubDomains; preload", h.Get("Strict-Transport-Security"))
	})

	t.Run("plain http never gets hsts", func(t *testing.T) {
		h := serve(securedRouter(SecurityOptions{EnableHSTS: true}), httptest.NewRequest(http.MethodGet, "/api/recipes", nil))
		assert.Empty(t, h.Get("Strict-Transport-Security"))
	})
}

func Test_isHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, isHTTPS(plain))

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	assert.True(t, isHTTPS(direct))

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	assert.True(t, isHTTPS(proxied))
}
