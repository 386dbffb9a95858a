package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header that carries the client key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdempotency = "idempotency"
	ctxKeyRateBypass  = "rate.bypass" // bool: skip rate limiting
)

const defaultIdempotencyMaxLen = 200

var defaultIdempotencyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// idempotencyState is what IdempotencyValidator learned about a keyed POST.
type idempotencyState struct {
	key      string
	scope    string
	replayID int64 // resource created by an earlier request, 0 if none
}

func idempotencyFrom(c *gin.Context) (*idempotencyState, bool) {
	v, ok := c.Get(ctxKeyIdempotency)
	if !ok {
		return nil, false
	}
	st, ok := v.(*idempotencyState)
	return st, ok && st != nil
}

// GetIdempotencyKey returns the validated key of a keyed POST.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	if st, ok := idempotencyFrom(c); ok {
		return st.key, true
	}
	return "", false
}

// IdempotencyScope returns the scope a key is recorded under: method plus
// registered route, e.g. "POST /api/recipes".
func IdempotencyScope(c *gin.Context) string {
	if st, ok := idempotencyFrom(c); ok {
		return st.scope
	}
	return scopeOf(c)
}

// ReplayResourceID returns the resource created by an earlier request with
// the same user, scope and key.
func ReplayResourceID(c *gin.Context) (int64, bool) {
	if st, ok := idempotencyFrom(c); ok && st.replayID > 0 {
		return st.replayID, true
	}
	return 0, false
}

// IsReplay reports whether the request repeats a completed create.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayResourceID(c)
	return ok
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	MaxLen  int              // longest accepted key, default 200
	Pattern *regexp.Regexp   // allowed key syntax, default [A-Za-z0-9._~-:]+
	Now     func() time.Time // clock for expiry checks, default time.Now
}

// IdempotencyLookup finds the resource created by an unexpired request with
// (userID, scope, key).
type IdempotencyLookup func(ctx context.Context, userID int64, scope, key string, now time.Time) (resourceID int64, found bool, err error)

// IdempotencyValidator handles the Idempotency-Key header on POST requests.
// Other methods and unkeyed requests pass through. A malformed key is
// rejected with 400. For an authenticated caller whose key already produced
// a resource, the request is marked as a replay and exempted from rate
// limiting; the handler then answers with the existing resource. A failing
// lookup is logged and the request proceeds as a fresh create.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	if opts.MaxLen <= 0 {
		opts.MaxLen = defaultIdempotencyMaxLen
	}
	if opts.Pattern == nil {
		opts.Pattern = defaultIdempotencyPattern
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > opts.MaxLen || !opts.Pattern.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		st := &idempotencyState{key: key, scope: scopeOf(c)}
		c.Set(ctxKeyIdempotency, st)

		uid := userIDFromCtx(c)
		if lookup == nil || uid <= 0 {
			c.Next()
			return
		}
		id, found, err := lookup(c.Request.Context(), uid, st.scope, key, opts.Now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Str("scope", st.scope).Msg("idempotency lookup failed")
		case found && id > 0:
			st.replayID = id
			c.Set(ctxKeyRateBypass, true)
			idempotentReplays.WithLabelValues(metricsPath(c)).Inc()
		}
		c.Next()
	}
}

func scopeOf(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}
