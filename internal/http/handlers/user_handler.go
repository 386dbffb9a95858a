// User HTTP handlers.
//
//   - GET /users, GET /users/{id}, GET /users/me
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipes-backend/internal/services"
)

// UserListResponse is a page of users.
type UserListResponse struct {
	Count      int64               `json:"count"`
	Results    []services.UserView `json:"results"`
	Pagination Pagination          `json:"pagination"`
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       page   query  int  false  "Page number"     minimum(1) default(1)
// @Param       limit  query  int  false  "Items per page"  minimum(1) maximum(100) default(6)
// @Success     200  {object}  handlers.UserListResponse
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	page, size := pageParams(c)
	items, total, err := h.users.List(c.Request.Context(), principal(c), page, size)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, UserListResponse{
		Count:      total,
		Results:    items,
		Pagination: newPagination(c, page, size, total),
	})
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "User id"
// @Success     200  {object}  services.UserView
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	u, err := h.users.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.UserView
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /users/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.users.Me(c.Request.Context(), principal(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
