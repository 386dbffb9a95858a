// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) on reference data endpoints.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// TableStats summarizes an append-mostly reference table.
type TableStats struct {
	Count int64
	MaxID int64
}

// IngredientStats returns the row count and highest ID of the ingredients
// table. Ingredients are immutable, so the pair changes whenever the table
// content does.
func IngredientStats(ctx context.Context, db *gorm.DB) (TableStats, error) {
	return tableStats(ctx, db, &domain.Ingredient{})
}

// TagStats returns the row count and highest ID of the tags table.
func TagStats(ctx context.Context, db *gorm.DB) (TableStats, error) {
	return tableStats(ctx, db, &domain.Tag{})
}

func tableStats(ctx context.Context, db *gorm.DB, model any) (TableStats, error) {
	var s TableStats
	q := db.WithContext(ctx).Model(model)
	if err := q.Count(&s.Count).Error; err != nil {
		return TableStats{}, err
	}
	if s.Count == 0 {
		return s, nil
	}
	var row struct{ ID int64 }
	if err := db.WithContext(ctx).Model(model).Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return TableStats{}, err
	}
	s.MaxID = row.ID
	return s, nil
}
