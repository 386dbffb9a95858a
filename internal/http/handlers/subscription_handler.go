// Subscription HTTP handlers.
//
//   - GET         /users/subscriptions
//   - POST|DELETE /users/{id}/subscribe
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipes-backend/internal/services"
)

// SubscriptionListResponse is a page of followed authors.
type SubscriptionListResponse struct {
	Count      int64                       `json:"count"`
	Results    []services.SubscriptionView `json:"results"`
	Pagination Pagination                  `json:"pagination"`
}

// recipesLimit parses ?recipes_limit, writing a 400 on bad input.
func recipesLimit(c *gin.Context) (int, bool) {
	n, err := services.ParseRecipesLimit(c.Query("recipes_limit"))
	if err != nil {
		respondErr(c, err)
		return 0, false
	}
	return n, true
}

// ListSubscriptions godoc
// @ID          listSubscriptions
// @Summary     List followed authors
// @Description Newest subscription first. Each author carries a preview of their newest recipes.
// @Tags        Subscriptions
// @Produce     json
// @Security    BearerAuth
// @Param       page           query  int  false  "Page number"                     minimum(1) default(1)
// @Param       limit          query  int  false  "Items per page"                  minimum(1) maximum(100) default(6)
// @Param       recipes_limit  query  int  false  "Recipes per author (omit for all)" minimum(0)
// @Success     200  {object}  handlers.SubscriptionListResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /users/subscriptions [get]
func (h *Handlers) ListSubscriptions(c *gin.Context) {
	limit, valid := recipesLimit(c)
	if !valid {
		return
	}
	page, size := pageParams(c)
	items, total, err := h.subscriptions.List(c.Request.Context(), principal(c), page, size, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, SubscriptionListResponse{
		Count:      total,
		Results:    items,
		Pagination: newPagination(c, page, size, total),
	})
}

// Subscribe godoc
// @ID          subscribe
// @Summary     Follow an author
// @Tags        Subscriptions
// @Produce     json
// @Security    BearerAuth
// @Param       id             path   int  true   "Author id"
// @Param       recipes_limit  query  int  false  "Recipes in the preview (omit for all)" minimum(0)
// @Success     201  {object}  services.SubscriptionView
// @Failure     400  {object}  handlers.ErrorResponse  "Self subscription or already subscribed"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{id}/subscribe [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	limit, valid := recipesLimit(c)
	if !valid {
		return
	}
	v, err := h.subscriptions.Subscribe(c.Request.Context(), principal(c), id, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// Unsubscribe godoc
// @ID          unsubscribe
// @Summary     Unfollow an author
// @Tags        Subscriptions
// @Security    BearerAuth
// @Param       id   path  int  true  "Author id"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Not subscribed"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{id}/subscribe [delete]
func (h *Handlers) Unsubscribe(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.subscriptions.Unsubscribe(c.Request.Context(), principal(c), id); err != nil {
		respondErr(c, err)
		return
	}
	noContent(c)
}
