// Tag and ingredient HTTP handlers.
//
//   - GET  /tags, GET /tags/{id}, POST /tags (admin)
//   - GET  /ingredients?name=<prefix>, GET /ingredients/{id}
//
// Both lists are small, unpaginated and change rarely, so they carry a weak
// ETag derived from the table version and honor If-None-Match.
package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipes-backend/internal/http/middleware"
	"github.com/tbourn/go-recipes-backend/internal/services"
)

// CreateTagRequest is the JSON payload for creating a tag.
type CreateTagRequest struct {
	Name  string `json:"name"  binding:"required,max=200" example:"Breakfast"`
	Color string `json:"color" binding:"required,len=7,hexcolor" example:"#E26C2D"`
	Slug  string `json:"slug"  binding:"required,max=200,slug" example:"breakfast"`
}

// notModified sets the ETag and reports whether the client copy is current.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" {
		for _, candidate := range strings.Split(inm, ",") {
			if strings.TrimSpace(candidate) == etag || strings.TrimSpace(candidate) == "*" {
				c.Status(http.StatusNotModified)
				return true
			}
		}
	}
	return false
}

// ListTags godoc
// @ID          listTags
// @Summary     List tags
// @Tags        Tags
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.Tag
// @Header      200  {string}  ETag  "Weak ETag for the tag table"
// @Success     304  {string}  string  "Not Modified"
// @Router      /tags [get]
func (h *Handlers) ListTags(c *gin.Context) {
	ctx := c.Request.Context()
	if ver, err := h.reference.TagsVersion(ctx); err == nil {
		if notModified(c, fmt.Sprintf(`W/"tags:%s"`, ver)) {
			return
		}
	}
	tags, err := h.reference.Tags(ctx)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, tags)
}

// GetTag godoc
// @ID          getTag
// @Summary     Get a tag
// @Tags        Tags
// @Produce     json
// @Param       id   path      int  true  "Tag id"
// @Success     200  {object}  domain.Tag
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tags/{id} [get]
func (h *Handlers) GetTag(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	t, err := h.reference.Tag(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// CreateTag godoc
// @ID          createTag
// @Summary     Create a tag (admin)
// @Tags        Tags
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                      false  "Client retry key"
// @Param       body             body    handlers.CreateTagRequest   true   "Tag"
// @Success     201  {object}  domain.Tag
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /tags [post]
func (h *Handlers) CreateTag(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)
	if !p.Authenticated() {
		respondErr(c, services.ErrLoginRequired)
		return
	}
	if !p.Admin {
		respondErr(c, services.ErrAdminOnly)
		return
	}
	if id, replay := middleware.ReplayResourceID(c); replay {
		if t, err := h.reference.Tag(ctx, id); err == nil {
			ok(c, http.StatusCreated, t)
			return
		}
	}

	var req CreateTagRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.reference.CreateTag(ctx, p, services.TagInput{Name: req.Name, Color: req.Color, Slug: req.Slug})
	if err != nil {
		respondErr(c, err)
		return
	}
	h.recordIdempotent(c, t.ID, http.StatusCreated)
	ok(c, http.StatusCreated, t)
}

// ListIngredients godoc
// @ID          listIngredients
// @Summary     Search ingredients by name prefix
// @Description Case-insensitive prefix match, ordered by name, unpaginated.
// @Tags        Ingredients
// @Produce     json
// @Param       name           query   string  false  "Name prefix"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.Ingredient
// @Header      200  {string}  ETag  "Weak ETag for the result"
// @Success     304  {string}  string  "Not Modified"
// @Router      /ingredients [get]
func (h *Handlers) ListIngredients(c *gin.Context) {
	ctx := c.Request.Context()
	prefix := strings.TrimSpace(c.Query("name"))
	if ver, err := h.reference.IngredientsVersion(ctx); err == nil {
		etag := fmt.Sprintf(`W/"ingredients:%s:%s"`, ver, url.QueryEscape(strings.ToLower(prefix)))
		if notModified(c, etag) {
			return
		}
	}
	items, err := h.reference.Ingredients(ctx, prefix)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetIngredient godoc
// @ID          getIngredient
// @Summary     Get an ingredient
// @Tags        Ingredients
// @Produce     json
// @Param       id   path      int  true  "Ingredient id"
// @Success     200  {object}  domain.Ingredient
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /ingredients/{id} [get]
func (h *Handlers) GetIngredient(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	it, err := h.reference.Ingredient(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}
