// Favorite, shopping cart and shopping list handlers.
//
//   - POST|DELETE /recipes/{id}/favorite
//   - POST|DELETE /recipes/{id}/shopping_cart
//   - GET         /recipes/download_shopping_cart
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipes-backend/internal/http/middleware"
)

const (
	kindFavorite = "favorite"
	kindCart     = "shopping_cart"
)

func (h *Handlers) toggleAdd(c *gin.Context, svc ToggleService, kind string) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	short, err := svc.Add(c.Request.Context(), principal(c), id)
	middleware.ObserveToggle(kind, "add", err == nil)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusCreated, short)
}

func (h *Handlers) toggleRemove(c *gin.Context, svc ToggleService, kind string) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	err := svc.Remove(c.Request.Context(), principal(c), id)
	middleware.ObserveToggle(kind, "remove", err == nil)
	if err != nil {
		respondErr(c, err)
		return
	}
	noContent(c)
}

// AddFavorite godoc
// @ID          addFavorite
// @Summary     Add a recipe to favorites
// @Tags        Favorites
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Recipe id"
// @Success     201  {object}  services.RecipeShort
// @Failure     400  {object}  handlers.ErrorResponse  "Already in favorites"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recipes/{id}/favorite [post]
func (h *Handlers) AddFavorite(c *gin.Context) { h.toggleAdd(c, h.favorites, kindFavorite) }

// RemoveFavorite godoc
// @ID          removeFavorite
// @Summary     Remove a recipe from favorites
// @Tags        Favorites
// @Security    BearerAuth
// @Param       id   path      int  true  "Recipe id"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Not in favorites"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recipes/{id}/favorite [delete]
func (h *Handlers) RemoveFavorite(c *gin.Context) { h.toggleRemove(c, h.favorites, kindFavorite) }

// AddToCart godoc
// @ID          addToCart
// @Summary     Add a recipe to the shopping cart
// @Tags        Shopping cart
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Recipe id"
// @Success     201  {object}  services.RecipeShort
// @Failure     400  {object}  handlers.ErrorResponse  "Already in the shopping cart"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recipes/{id}/shopping_cart [post]
func (h *Handlers) AddToCart(c *gin.Context) { h.toggleAdd(c, h.cart, kindCart) }

// RemoveFromCart godoc
// @ID          removeFromCart
// @Summary     Remove a recipe from the shopping cart
// @Tags        Shopping cart
// @Security    BearerAuth
// @Param       id   path      int  true  "Recipe id"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Not in the shopping cart"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recipes/{id}/shopping_cart [delete]
func (h *Handlers) RemoveFromCart(c *gin.Context) { h.toggleRemove(c, h.cart, kindCart) }

// DownloadShoppingCart godoc
// @ID          downloadShoppingCart
// @Summary     Download the aggregated shopping list
// @Description One line per ingredient, amounts summed across all recipes in the cart, sorted by name.
// @Tags        Shopping cart
// @Produce     plain
// @Produce     application/pdf
// @Security    BearerAuth
// @Param       format  query  string  false  "txt or pdf (server default when omitted)"  Enums(txt, pdf)
// @Success     200  {file}    file
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown format"
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /recipes/download_shopping_cart [get]
func (h *Handlers) DownloadShoppingCart(c *gin.Context) {
	doc, err := h.shoppingList.Download(c.Request.Context(), principal(c), c.Query("format"))
	if err != nil {
		respondErr(c, err)
		return
	}
	middleware.ObserveShoppingListDownload(string(doc.Format))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
