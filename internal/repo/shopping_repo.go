// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the cart-to-ingredients query feeding
// the shopping list.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/shoppinglist"
)

// CartRows returns one row per ingredient line of every recipe in the user's
// shopping cart, ordered by ingredient name, recipe and line position so that
// the result is deterministic for an unchanged cart.
func CartRows(ctx context.Context, db *gorm.DB, userID int64) ([]shoppinglist.Row, error) {
	var rows []shoppinglist.Row
	err := db.WithContext(ctx).
		Table("shopping_cart").
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, recipe_ingredients.amount AS amount").
		Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = shopping_cart.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("shopping_cart.user_id = ?", userID).
		Order("ingredients.name ASC").
		Order("recipe_ingredients.recipe_id ASC").
		Order("recipe_ingredients.position ASC").
		Scan(&rows).Error
	return rows, err
}
