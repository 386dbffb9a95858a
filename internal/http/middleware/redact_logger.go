// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger installed when
// LOG_REDACT is on. It never logs bodies, and it scrubs credentials and
// personal data from the request metadata it does log:
//
//   - bearer tokens (header values and JWT-shaped strings in query strings)
//   - email addresses (users are identified by email)
//   - UUIDs, which clients commonly use as idempotency keys
//
// The authenticated user is logged by numeric id only.
package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names whose values are replaced with
	// "[REDACTED]". Authorization, Cookie, Set-Cookie and Idempotency-Key
	// are always masked.
	MaskHeaders []string
	// SkipPaths are route paths that are not logged (e.g. "/health").
	SkipPaths []string
}

var (
	jwtRE   = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

// redactor scrubs strings and headers. The zero value masks nothing extra.
type redactor struct {
	masked map[string]struct{}
}

func newRedactor(extra []string) redactor {
	r := redactor{masked: map[string]struct{}{
		"authorization":                       {},
		"cookie":                              {},
		"set-cookie":                          {},
		strings.ToLower(HeaderIdempotencyKey): {},
	}}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.masked[h] = struct{}{}
		}
	}
	return r
}

// scrub replaces tokens, emails and UUIDs. Tokens go first since a JWT
// payload segment can contain an email-looking substring once decoded by
// some clients.
func (r redactor) scrub(s string) string {
	if s == "" {
		return s
	}
	s = jwtRE.ReplaceAllString(s, "[REDACTED:token]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

// headers returns a scrubbed copy of h with masked headers blanked.
func (r redactor) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.scrub(strings.Join(vv, ", "))
	}
	return out
}

// authScheme reports the scheme of the Authorization header ("bearer",
// "token", "other") or "" when absent.
func authScheme(h string) string {
	scheme, _, _ := strings.Cut(strings.TrimSpace(h), " ")
	switch s := strings.ToLower(scheme); s {
	case "":
		return ""
	case "bearer", "token":
		return s
	default:
		return "other"
	}
}

// RedactingLogger logs one line per request with scrubbed metadata, at the
// same levels as Logger.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts.MaskHeaders)
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := routePath(c)
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		query := red.scrub(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		headers := red.headers(c.Request.Header)
		scheme := authScheme(c.GetHeader("Authorization"))

		c.Next()

		status := c.Writer.Status()
		ev := log.WithLevel(accessLevel(status, len(c.Errors) > 0))
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", red.scrub(c.Errors.String()))
		}

		ev.
			Str("request_id", RequestIDFrom(c)).
			Int64("user_id", userIDFromCtx(c)).
			Str("auth", scheme).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("idempotent_replay", IsReplay(c)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
