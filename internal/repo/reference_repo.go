// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for reference data:
// tags and ingredients.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// ListTags returns every tag ordered by name.
func ListTags(ctx context.Context, db *gorm.DB) ([]domain.Tag, error) {
	var out []domain.Tag
	err := db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&out).Error
	return out, err
}

// GetTag fetches a tag by ID, or ErrNotFound.
func GetTag(ctx context.Context, db *gorm.DB, id int64) (*domain.Tag, error) {
	var t domain.Tag
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag inserts a tag. Duplicate names or slugs surface as driver errors.
func CreateTag(ctx context.Context, db *gorm.DB, t *domain.Tag) error {
	return db.WithContext(ctx).Create(t).Error
}

// TagsByIDs returns the tags whose IDs are in ids, in no particular order.
func TagsByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Tag, error) {
	var out []domain.Tag
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// SearchIngredients returns ingredients whose lower-cased name starts with
// prefix, ordered by name. An empty prefix returns all ingredients.
// The caller is expected to pass an already case-folded prefix.
func SearchIngredients(ctx context.Context, db *gorm.DB, prefix string) ([]domain.Ingredient, error) {
	var out []domain.Ingredient
	q := db.WithContext(ctx).Order("name ASC").Order("id ASC")
	if prefix != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", escapeLike(prefix)+"%")
	}
	err := q.Find(&out).Error
	return out, err
}

// GetIngredient fetches an ingredient by ID, or ErrNotFound.
func GetIngredient(ctx context.Context, db *gorm.DB, id int64) (*domain.Ingredient, error) {
	var in domain.Ingredient
	if err := db.WithContext(ctx).Where("id = ?", id).First(&in).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

// IngredientsByIDs returns the ingredients whose IDs are in ids.
func IngredientsByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Ingredient, error) {
	var out []domain.Ingredient
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// InsertIngredients inserts ingredients in batches, skipping rows whose
// (name, measurement_unit) pair already exists. It returns the number of rows
// actually inserted.
func InsertIngredients(ctx context.Context, db *gorm.DB, items []domain.Ingredient, batchSize int) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(items, batchSize)
	return res.RowsAffected, res.Error
}

// escapeLike escapes LIKE wildcards with '!' so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}
