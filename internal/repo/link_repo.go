// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the per-user
// recipe links: favorites and shopping cart entries.
//
// Both link tables share the same shape and lifecycle (rows are created and
// destroyed, never updated), so the functions take a LinkKind selecting the
// table instead of being duplicated per model.
//
// Error semantics:
//   - Duplicate links rely on the database unique index and are returned as
//     raw DB errors; use IsDuplicate to classify them.
package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// LinkKind selects the link table.
type LinkKind int

const (
	// LinkFavorite addresses the favorites table.
	LinkFavorite LinkKind = iota
	// LinkCart addresses the shopping_cart table.
	LinkCart
)

// String returns a short name used in logs and metrics.
func (k LinkKind) String() string {
	switch k {
	case LinkFavorite:
		return "favorite"
	case LinkCart:
		return "shopping_cart"
	default:
		return fmt.Sprintf("link(%d)", int(k))
	}
}

func (k LinkKind) model(userID, recipeID int64) any {
	switch k {
	case LinkCart:
		return &domain.CartEntry{UserID: userID, RecipeID: recipeID}
	default:
		return &domain.Favorite{UserID: userID, RecipeID: recipeID}
	}
}

func (k LinkKind) table() string {
	if k == LinkCart {
		return domain.CartEntry{}.TableName()
	}
	return domain.Favorite{}.TableName()
}

// CreateLink inserts the (userID, recipeID) pair into the kind's table.
func CreateLink(ctx context.Context, db *gorm.DB, kind LinkKind, userID, recipeID int64) error {
	return db.WithContext(ctx).
		Omit("User", "Recipe").
		Create(kind.model(userID, recipeID)).Error
}

// DeleteLink removes the pair and reports whether a row was deleted.
func DeleteLink(ctx context.Context, db *gorm.DB, kind LinkKind, userID, recipeID int64) (bool, error) {
	res := db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(kind.model(0, 0))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LinkExists reports whether the pair is present.
func LinkExists(ctx context.Context, db *gorm.DB, kind LinkKind, userID, recipeID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Table(kind.table()).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(&n).Error
	return n > 0, err
}

// LinkedRecipeIDs returns the subset of recipeIDs linked to userID.
func LinkedRecipeIDs(ctx context.Context, db *gorm.DB, kind LinkKind, userID int64, recipeIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(recipeIDs))
	if userID <= 0 || len(recipeIDs) == 0 {
		return out, nil
	}
	var ids []int64
	err := db.WithContext(ctx).
		Table(kind.table()).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// DeleteLinksForRecipe removes every favorite and cart entry of a recipe.
func DeleteLinksForRecipe(ctx context.Context, db *gorm.DB, recipeID int64) error {
	for _, k := range []LinkKind{LinkFavorite, LinkCart} {
		if err := db.WithContext(ctx).
			Where("recipe_id = ?", recipeID).
			Delete(k.model(0, 0)).Error; err != nil {
			return err
		}
	}
	return nil
}
