// Package handlers provides HTTP handler implementations for the public API.
//
// Every error leaves through fail/failFields (or respondErr, which maps
// service errors onto them) so clients always see the same envelope and 5xx
// causes are logged with the request-scoped logger. Paginated lists share
// the {count, results, pagination} shape; pagination carries next/previous
// links built from the request URL.
package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipes-backend/internal/http/middleware"
	"github.com/tbourn/go-recipes-backend/internal/utils"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Code is stable and machine-readable (see errors.go).
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"recipe not found"`
	// Fields holds one message per invalid request field.
	Fields map[string]string `json:"fields,omitempty"`
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Total      int64  `json:"total"`
	TotalPages int    `json:"total_pages"`
	HasNext    bool   `json:"has_next"`
	Next       string `json:"next,omitempty" example:"/api/recipes?limit=6&page=3"`
	Previous   string `json:"previous,omitempty" example:"/api/recipes?limit=6&page=1"`
}

// newPagination computes page metadata. Links keep every query parameter of
// the request (filters included) and only swap the page number.
func newPagination(c *gin.Context, page, size int, total int64) Pagination {
	pages := utils.TotalPages(total, size)
	p := Pagination{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
	if p.HasNext {
		p.Next = pageLink(c.Request.URL, page+1)
	}
	if page > 1 && pages > 0 {
		p.Previous = pageLink(c.Request.URL, min(page-1, pages))
	}
	return p
}

func pageLink(u *url.URL, page int) string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	return (&url.URL{Path: u.Path, RawQuery: q.Encode()}).String()
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	failFields(c, status, code, msg, nil)
}

func failFields(c *gin.Context, status int, code, msg string, fields map[string]string) {
	resp := ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
		Fields:    fields,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.Last().Error())
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is fail for router-level fallbacks (NoRoute, NoMethod).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
