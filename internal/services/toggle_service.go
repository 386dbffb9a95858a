// Package services – ToggleService
//
// This file implements ToggleService, the add/remove semantics shared by
// favorites and the shopping cart. One instance serves one link kind.
//
// Semantics:
//   - Add: the recipe must exist (ErrRecipeNotFound); an existing pair fails
//     with the kind's conflict error; otherwise the pair is created and the
//     short recipe projection returned.
//   - Remove: the recipe must exist; a missing pair fails with the kind's
//     "not linked" error; otherwise the pair is deleted.
//   - Concurrent duplicate adds are serialized by the unique index; the loser
//     receives the same conflict error.
package services

import (
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/observability"
	"github.com/tbourn/go-recipes-backend/internal/repo"
)

// ToggleService adds and removes (user, recipe) links of one kind.
type ToggleService struct {
	DB   *gorm.DB
	Kind repo.LinkKind

	errExists  error
	errMissing error
}

// NewFavoriteService returns a ToggleService for favorites.
func NewFavoriteService(db *gorm.DB) *ToggleService {
	return &ToggleService{DB: db, Kind: repo.LinkFavorite, errExists: ErrAlreadyFavorited, errMissing: ErrNotFavorited}
}

// NewCartService returns a ToggleService for the shopping cart.
func NewCartService(db *gorm.DB) *ToggleService {
	return &ToggleService{DB: db, Kind: repo.LinkCart, errExists: ErrAlreadyInCart, errMissing: ErrNotInCart}
}

func (s *ToggleService) span(ctx context.Context, op string, p domain.Principal, recipeID int64) (context.Context, trace.Span) {
	return observability.Tracer("services/ToggleService").Start(ctx, op,
		trace.WithAttributes(
			attribute.String("link.kind", s.Kind.String()),
			attribute.Int64("user.id", p.UserID),
			attribute.Int64("recipe.id", recipeID),
		),
	)
}

// Add links recipeID to the principal.
func (s *ToggleService) Add(ctx context.Context, p domain.Principal, recipeID int64) (*RecipeShort, error) {
	ctx, span := s.span(ctx, "Add", p, recipeID)
	defer span.End()

	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}

	var out RecipeShort
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.GetRecipeShort(ctx, tx, recipeID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrRecipeNotFound
			}
			return err
		}
		exists, err := repo.LinkExists(ctx, tx, s.Kind, p.UserID, recipeID)
		if err != nil {
			return err
		}
		if exists {
			return s.errExists
		}
		if err := repo.CreateLink(ctx, tx, s.Kind, p.UserID, recipeID); err != nil {
			if repo.IsDuplicate(err) {
				return s.errExists
			}
			return err
		}
		out = recipeShort(*r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove unlinks recipeID from the principal.
func (s *ToggleService) Remove(ctx context.Context, p domain.Principal, recipeID int64) error {
	ctx, span := s.span(ctx, "Remove", p, recipeID)
	defer span.End()

	if !p.Authenticated() {
		return ErrLoginRequired
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetRecipeShort(ctx, tx, recipeID); err != nil {
			if repo.IsNotFound(err) {
				return ErrRecipeNotFound
			}
			return err
		}
		deleted, err := repo.DeleteLink(ctx, tx, s.Kind, p.UserID, recipeID)
		if err != nil {
			return err
		}
		if !deleted {
			return s.errMissing
		}
		return nil
	})
}
