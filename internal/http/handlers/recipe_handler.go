// Recipe HTTP handlers.
//
// This file exposes REST endpoints for recipe resources:
//   - GET    /recipes          (catalog, filtered + paginated)
//   - GET    /recipes/{id}     (read)
//   - POST   /recipes          (create, Idempotency-Key aware)
//   - PATCH  /recipes/{id}     (full replace of tags and ingredient lines)
//   - DELETE /recipes/{id}
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipes-backend/internal/http/middleware"
	"github.com/tbourn/go-recipes-backend/internal/services"
	"github.com/tbourn/go-recipes-backend/internal/sysutil"
	"github.com/tbourn/go-recipes-backend/internal/utils"
)

//
// DTOs
//

// IngredientAmountRequest is one ingredient line of a recipe write request.
type IngredientAmountRequest struct {
	ID     int64 `json:"id"     binding:"required,gt=0" example:"1123"`
	Amount int   `json:"amount" binding:"required,min=1" example:"10"`
}

// CreateRecipeRequest is the JSON payload for creating a recipe.
type CreateRecipeRequest struct {
	Ingredients []IngredientAmountRequest `json:"ingredients"  binding:"required,min=1,dive"`
	Tags        []int64                   `json:"tags"         binding:"required,min=1,dive,gt=0" example:"1,2"`
	Image       string                    `json:"image"        binding:"required" example:"data:image/png;base64,iVBORw0KGgo="`
	Name        string                    `json:"name"         binding:"required,max=200" example:"Pancakes"`
	Text        string                    `json:"text"         binding:"required" example:"Mix, rest for 10 minutes, fry."`
	CookingTime int                       `json:"cooking_time" binding:"required,min=1" example:"25"`
}

// UpdateRecipeRequest is the JSON payload for updating a recipe. An empty
// image keeps the current one.
type UpdateRecipeRequest struct {
	Ingredients []IngredientAmountRequest `json:"ingredients"  binding:"required,min=1,dive"`
	Tags        []int64                   `json:"tags"         binding:"required,min=1,dive,gt=0" example:"1,2"`
	Image       string                    `json:"image"`
	Name        string                    `json:"name"         binding:"required,max=200" example:"Pancakes"`
	Text        string                    `json:"text"         binding:"required" example:"Mix, rest for 10 minutes, fry."`
	CookingTime int                       `json:"cooking_time" binding:"required,min=1" example:"25"`
}

// RecipeListResponse is a page of the catalog.
type RecipeListResponse struct {
	Count      int64                 `json:"count"`
	Results    []services.RecipeView `json:"results"`
	Pagination Pagination            `json:"pagination"`
}

func toInput(ings []IngredientAmountRequest, tags []int64, image, name, text string, cookingTime int) services.RecipeInput {
	in := services.RecipeInput{
		Name:        name,
		Text:        text,
		Image:       image,
		CookingTime: cookingTime,
		Tags:        tags,
		Ingredients: make([]services.IngredientAmount, 0, len(ings)),
	}
	for _, it := range ings {
		in.Ingredients = append(in.Ingredients, services.IngredientAmount{ID: it.ID, Amount: it.Amount})
	}
	return in
}

// parseFlag accepts 1/0/true/false; empty means false.
func parseFlag(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false":
		return false, true
	case "1", "true":
		return true, true
	}
	return false, false
}

// pageParams reads page and limit (alias page_size).
func pageParams(c *gin.Context) (int, int) {
	pg := utils.ParsePage(c.Query("page"), sysutil.FirstNonEmpty(c.Query("limit"), c.Query("page_size")))
	return pg.Number, pg.Size
}

//
// Handlers
//

// ListRecipes godoc
// @ID          listRecipes
// @Summary     List recipes (filtered, paginated)
// @Description Newest first. Favorite and cart filters apply to authenticated callers only.
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
// @Param       tags                 query  []string  false  "Tag slugs (any match)"  collectionFormat(multi)
// @Param       author               query  int       false  "Author id"
// @Param       is_favorited         query  string    false  "1|0|true|false"
// @Param       is_in_shopping_cart  query  string    false  "1|0|true|false"
// @Param       page                 query  int       false  "Page number"     minimum(1) default(1)
// @Param       limit                query  int       false  "Items per page"  minimum(1) maximum(100) default(6)
// @Success     200  {object}  handlers.RecipeListResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /recipes [get]
func (h *Handlers) ListRecipes(c *gin.Context) {
	q := services.CatalogQuery{TagSlugs: c.QueryArray("tags")}

	if raw := c.Query("author"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "author must be a user id")
			return
		}
		q.AuthorID = id
	}
	var valid bool
	if q.IsFavorited, valid = parseFlag(c.Query("is_favorited")); !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "is_favorited must be 0, 1, true or false")
		return
	}
	if q.InCart, valid = parseFlag(c.Query("is_in_shopping_cart")); !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "is_in_shopping_cart must be 0, 1, true or false")
		return
	}

	page, size := pageParams(c)
	items, total, err := h.recipes.List(c.Request.Context(), principal(c), q, page, size)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, RecipeListResponse{
		Count:      total,
		Results:    items,
		Pagination: newPagination(c, page, size, total),
	})
}

// GetRecipe godoc
// @ID          getRecipe
// @Summary     Get a recipe
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Recipe id"
// @Success     200  {object}  services.RecipeView
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recipes/{id} [get]
func (h *Handlers) GetRecipe(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	v, err := h.recipes.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// CreateRecipe godoc
// @ID          createRecipe
// @Summary     Create a recipe
// @Description The caller becomes the author. A repeated request with the same Idempotency-Key returns the recipe created first.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                         false  "Client retry key"
// @Param       body             body    handlers.CreateRecipeRequest   true   "Recipe"
// @Success     201  {object}  services.RecipeView
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed or duplicate recipe"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown tag or ingredient"
// @Router      /recipes [post]
func (h *Handlers) CreateRecipe(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)
	if !p.Authenticated() {
		respondErr(c, services.ErrLoginRequired)
		return
	}

	if id, replay := middleware.ReplayResourceID(c); replay {
		if v, err := h.recipes.Get(ctx, p, id); err == nil {
			ok(c, http.StatusCreated, v)
			return
		}
	}

	var req CreateRecipeRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.recipes.Create(ctx, p, toInput(req.Ingredients, req.Tags, req.Image, req.Name, req.Text, req.CookingTime))
	if err != nil {
		respondErr(c, err)
		return
	}
	h.recordIdempotent(c, v.ID, http.StatusCreated)
	ok(c, http.StatusCreated, v)
}

// UpdateRecipe godoc
// @ID          updateRecipe
// @Summary     Update a recipe
// @Description Replaces name, text, cooking time, tags and ingredient lines. Author or admin only.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int                            true  "Recipe id"
// @Param       body  body  handlers.UpdateRecipeRequest   true  "Recipe"
// @Success     200  {object}  services.RecipeView
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recipes/{id} [patch]
func (h *Handlers) UpdateRecipe(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	p := principal(c)
	if !p.Authenticated() {
		respondErr(c, services.ErrLoginRequired)
		return
	}
	var req UpdateRecipeRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.recipes.Update(c.Request.Context(), p, id, toInput(req.Ingredients, req.Tags, req.Image, req.Name, req.Text, req.CookingTime))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// DeleteRecipe godoc
// @ID          deleteRecipe
// @Summary     Delete a recipe
// @Tags        Recipes
// @Security    BearerAuth
// @Param       id   path  int  true  "Recipe id"
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recipes/{id} [delete]
func (h *Handlers) DeleteRecipe(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.recipes.Delete(c.Request.Context(), principal(c), id); err != nil {
		respondErr(c, err)
		return
	}
	noContent(c)
}
