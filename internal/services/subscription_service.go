// Package services – SubscriptionService
//
// This file implements SubscriptionService: following and unfollowing
// authors, and listing followed authors with a capped preview of their
// recipes.
package services

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/observability"
	"github.com/tbourn/go-recipes-backend/internal/repo"
	"github.com/tbourn/go-recipes-backend/internal/utils"
)

// AllRecipes disables the recipe preview cap.
const AllRecipes = -1

// ParseRecipesLimit parses the recipes_limit query value. Empty input means
// AllRecipes; negative or non-numeric input is rejected.
func ParseRecipesLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AllRecipes, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalidRecipesLimit
	}
	return n, nil
}

// SubscriptionService manages follower -> author edges.
type SubscriptionService struct {
	DB *gorm.DB
}

func subTracer() trace.Tracer { return observability.Tracer("services/SubscriptionService") }

// Subscribe makes p follow authorID and returns the author's view.
func (s *SubscriptionService) Subscribe(ctx context.Context, p domain.Principal, authorID int64, recipesLimit int) (*SubscriptionView, error) {
	ctx, span := subTracer().Start(ctx, "Subscribe",
		trace.WithAttributes(attribute.Int64("user.id", p.UserID), attribute.Int64("author.id", authorID)),
	)
	defer span.End()

	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}

	var out *SubscriptionView
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author, err := repo.GetUser(ctx, tx, authorID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}
		if authorID == p.UserID {
			return ErrSelfSubscription
		}
		exists, err := repo.SubscriptionExists(ctx, tx, p.UserID, authorID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySubscribed
		}
		if err := repo.CreateSubscription(ctx, tx, p.UserID, authorID); err != nil {
			if repo.IsDuplicate(err) {
				return ErrAlreadySubscribed
			}
			return err
		}
		views, err := subscriptionViews(ctx, tx, []domain.User{*author}, recipesLimit)
		if err != nil {
			return err
		}
		out = &views[0]
		return nil
	})
	return out, err
}

// Unsubscribe removes the p -> authorID edge.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, p domain.Principal, authorID int64) error {
	ctx, span := subTracer().Start(ctx, "Unsubscribe",
		trace.WithAttributes(attribute.Int64("user.id", p.UserID), attribute.Int64("author.id", authorID)),
	)
	defer span.End()

	if !p.Authenticated() {
		return ErrLoginRequired
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetUser(ctx, tx, authorID); err != nil {
			if repo.IsNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}
		deleted, err := repo.DeleteSubscription(ctx, tx, p.UserID, authorID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotSubscribed
		}
		return nil
	})
}

// List returns a page of the authors p follows, most recent subscription
// first, each with up to recipesLimit recipes (AllRecipes for no cap).
func (s *SubscriptionService) List(ctx context.Context, p domain.Principal, page, pageSize, recipesLimit int) ([]SubscriptionView, int64, error) {
	ctx, span := subTracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int64("user.id", p.UserID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
			attribute.Int("recipes_limit", recipesLimit),
		),
	)
	defer span.End()

	if !p.Authenticated() {
		return nil, 0, ErrLoginRequired
	}
	if recipesLimit < AllRecipes {
		return nil, 0, ErrInvalidRecipesLimit
	}
	pg := utils.NewPage(page, pageSize)

	total, err := repo.CountSubscriptions(ctx, s.DB, p.UserID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []SubscriptionView{}, 0, nil
	}
	authors, err := repo.ListSubscribedAuthorsPage(ctx, s.DB, p.UserID, pg.Offset(), pg.Size)
	if err != nil {
		return nil, 0, err
	}
	views, err := subscriptionViews(ctx, s.DB, authors, recipesLimit)
	return views, total, err
}

// subscriptionViews builds views for authors the caller is known to follow.
func subscriptionViews(ctx context.Context, db *gorm.DB, authors []domain.User, recipesLimit int) ([]SubscriptionView, error) {
	ids := make([]int64, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}
	counts, err := repo.CountRecipesByAuthors(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]SubscriptionView, 0, len(authors))
	for _, a := range authors {
		recipes, err := repo.ListRecipesByAuthor(ctx, db, a.ID, recipesLimit)
		if err != nil {
			return nil, err
		}
		shorts := make([]RecipeShort, len(recipes))
		for i, r := range recipes {
			shorts[i] = recipeShort(r)
		}
		out = append(out, SubscriptionView{
			UserView:     userView(a, true),
			Recipes:      shorts,
			RecipesCount: counts[a.ID],
		})
	}
	return out, nil
}
