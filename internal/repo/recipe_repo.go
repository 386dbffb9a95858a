// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipe
// aggregate: the recipe row, its tag links and its ingredient lines.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business rules, only persistence and query composition.
//
// Error semantics:
//   - When a recipe is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// RecipeFilter narrows the recipe catalog. Zero values disable a filter.
type RecipeFilter struct {
	TagSlugs    []string // recipe has at least one of these tags
	AuthorID    int64    // recipe authored by this user
	FavoritedBy int64    // recipe is in this user's favorites
	InCartOf    int64    // recipe is in this user's shopping cart
}

// Scope returns a GORM scope applying the filter to a query on recipes.
func (f RecipeFilter) Scope() func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		sub := func() *gorm.DB { return q.Session(&gorm.Session{NewDB: true}) }

		if len(f.TagSlugs) > 0 {
			tagged := sub().Table("recipe_tags").
				Select("recipe_tags.recipe_id").
				Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
				Where("tags.slug IN ?", f.TagSlugs)
			q = q.Where("recipes.id IN (?)", tagged)
		}
		if f.AuthorID > 0 {
			q = q.Where("recipes.author_id = ?", f.AuthorID)
		}
		if f.FavoritedBy > 0 {
			fav := sub().Model(&domain.Favorite{}).Select("recipe_id").Where("user_id = ?", f.FavoritedBy)
			q = q.Where("recipes.id IN (?)", fav)
		}
		if f.InCartOf > 0 {
			cart := sub().Model(&domain.CartEntry{}).Select("recipe_id").Where("user_id = ?", f.InCartOf)
			q = q.Where("recipes.id IN (?)", cart)
		}
		return q
	}
}

// withDetails preloads everything the read schema of a recipe needs.
func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Ingredients.Ingredient")
}

// newestFirst is the default catalog ordering.
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("recipes.created_at DESC").Order("recipes.id DESC")
}

// CountRecipes returns the number of recipes matching f.
func CountRecipes(ctx context.Context, db *gorm.DB, f RecipeFilter) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Scopes(f.Scope()).
		Count(&total).Error
	return total, err
}

// ListRecipesPage returns a page of recipes matching f, newest first, with
// author, tags and ingredient lines preloaded.
func ListRecipesPage(ctx context.Context, db *gorm.DB, f RecipeFilter, offset, limit int) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Scopes(f.Scope(), newestFirst, withDetails).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetRecipe fetches a recipe with all details, or ErrNotFound.
func GetRecipe(ctx context.Context, db *gorm.DB, id int64) (*domain.Recipe, error) {
	var r domain.Recipe
	err := db.WithContext(ctx).
		Scopes(withDetails).
		Where("recipes.id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRecipeShort fetches only the recipe row, or ErrNotFound.
func GetRecipeShort(ctx context.Context, db *gorm.DB, id int64) (*domain.Recipe, error) {
	var r domain.Recipe
	err := db.WithContext(ctx).
		Select("id", "name", "author_id", "image", "cooking_time", "created_at").
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecipeNameTextTaken reports whether another recipe (id != excludeID)
// already uses the (name, text) pair.
func RecipeNameTextTaken(ctx context.Context, db *gorm.DB, name, text string, excludeID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("name = ? AND text = ? AND id <> ?", name, text, excludeID).
		Count(&n).Error
	return n > 0, err
}

// CreateRecipe inserts the recipe row, its tag links and its ingredient
// lines. Positions are assigned from the order of lines.
func CreateRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe, tags []domain.Tag, lines []domain.RecipeIngredient) error {
	tx := db.WithContext(ctx)
	if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
		return err
	}
	if err := ReplaceRecipeTags(ctx, db, r, tags); err != nil {
		return err
	}
	return ReplaceRecipeLines(ctx, db, r.ID, lines)
}

// UpdateRecipeFields writes the scalar columns of r.
func UpdateRecipeFields(ctx context.Context, db *gorm.DB, r *domain.Recipe) error {
	res := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"name":         r.Name,
			"text":         r.Text,
			"cooking_time": r.CookingTime,
			"image":        r.Image,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceRecipeTags sets the recipe's tag set to exactly tags.
func ReplaceRecipeTags(ctx context.Context, db *gorm.DB, r *domain.Recipe, tags []domain.Tag) error {
	return db.WithContext(ctx).
		Model(&domain.Recipe{ID: r.ID}).
		Omit("Tags.*").
		Association("Tags").
		Replace(tags)
}

// ReplaceRecipeLines deletes every ingredient line of the recipe and inserts
// lines in order.
func ReplaceRecipeLines(ctx context.Context, db *gorm.DB, recipeID int64, lines []domain.RecipeIngredient) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&domain.RecipeIngredient{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	rows := make([]domain.RecipeIngredient, len(lines))
	for i, l := range lines {
		rows[i] = domain.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: l.IngredientID,
			Amount:       l.Amount,
			Position:     i,
		}
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

// DeleteRecipe removes the recipe together with its lines, tag links,
// favorites and cart entries. It returns ErrNotFound if no row was deleted.
func DeleteRecipe(ctx context.Context, db *gorm.DB, id int64) error {
	tx := db.WithContext(ctx)
	if err := DeleteLinksForRecipe(ctx, db, id); err != nil {
		return err
	}
	if err := tx.Where("recipe_id = ?", id).Delete(&domain.RecipeIngredient{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&domain.Recipe{ID: id}).Association("Tags").Clear(); err != nil {
		return err
	}
	res := tx.Delete(&domain.Recipe{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListRecipesByAuthor returns the author's recipes, newest first. A negative
// limit returns all of them.
func ListRecipesByAuthor(ctx context.Context, db *gorm.DB, authorID int64, limit int) ([]domain.Recipe, error) {
	var out []domain.Recipe
	if limit == 0 {
		return out, nil
	}
	q := db.WithContext(ctx).
		Select("id", "name", "image", "cooking_time", "created_at").
		Where("author_id = ?", authorID).
		Scopes(newestFirst)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountRecipesByAuthors returns the number of recipes per author for the
// given author IDs. Authors without recipes are absent from the map.
func CountRecipesByAuthors(ctx context.Context, db *gorm.DB, authorIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		AuthorID int64
		N        int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Select("author_id, COUNT(*) AS n").
		Where("author_id IN ?", authorIDs).
		Group("author_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.AuthorID] = r.N
	}
	return out, nil
}
