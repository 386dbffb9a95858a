// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the correlation and logging pieces:
//
//   - RequestID propagates or mints the X-Request-ID of each request.
//   - Logger writes the plain access log (RedactingLogger is the scrubbing
//     variant used when LOG_REDACT is on).
//   - ContextLogger puts a request-scoped zerolog.Logger on the request
//     context so services can log through zerolog.Ctx(ctx).
//   - Recovery turns panics into the standard JSON 500 envelope.
//
// Order: RequestID, Logger, Recovery, ..., Authenticate, ContextLogger.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxRequestIDLength bounds client supplied correlation ids.
	maxRequestIDLength = 128
	// maxQueryLogLength caps the raw query bytes written to a log line.
	maxQueryLogLength = 2048
)

// validRequestID accepts visible ASCII ids of bounded length so a client
// cannot inject control characters into logs or response headers.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// RequestID reuses a valid incoming X-Request-ID or mints a UUIDv4, stores
// it on the context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id of the request: the one RequestID
// stored, else the response header, else the raw request header.
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
		return rid
	}
	return c.GetHeader(requestIDHeader)
}

// routePath prefers the matched route pattern (/api/recipes/:id) over the
// raw path so log lines and metrics stay low-cardinality.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// accessLevel picks the log level for a finished request.
func accessLevel(status int, hasErrors bool) zerolog.Level {
	switch {
	case hasErrors, status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger writes one access log line per request. The user id is read after
// the chain ran so the principal resolved by Authenticate is included.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.WithLevel(accessLevel(status, len(c.Errors) > 0))
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.
			Str("request_id", RequestIDFrom(c)).
			Int64("user_id", userIDFromCtx(c)).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Bool("idempotent_replay", IsReplay(c)).
			Msg("request")
	}
}

// ContextLogger attaches a logger carrying request_id, user_id, method and
// route to both the Gin context and the request context.Context. Install it
// after Authenticate.
func ContextLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Int64("user_id", userIDFromCtx(c)).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Logger()

		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// Recovery logs a panic with its stack and answers 500 in the standard
// envelope. If the handler already started writing, only the status is set.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Int64("user_id", userIDFromCtx(c)).
				Str("path", routePath(c)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger installed by ContextLogger, or the global
// logger when it did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.Logger
	return &l
}

// truncate caps s at max bytes and appends an ellipsis. A max <= 0 disables
// truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
