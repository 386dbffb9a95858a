// Package services – read and write schemas
//
// This file declares the explicit per-operation schemas exchanged with the
// transport layer: write inputs (RecipeInput, TagInput) and read views
// (RecipeView, RecipeShort, UserView, SubscriptionView). Views are assembled
// from domain models plus per-principal flags loaded in batches.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/repo"
)

// IngredientAmount is one ingredient line of a recipe write request.
type IngredientAmount struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// RecipeInput is the write schema for recipe create and update.
type RecipeInput struct {
	Name        string             `json:"name"`
	Text        string             `json:"text"`
	Image       string             `json:"image"`
	CookingTime int                `json:"cooking_time"`
	Tags        []int64            `json:"tags"`
	Ingredients []IngredientAmount `json:"ingredients"`
}

// TagInput is the write schema for tag creation.
type TagInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Slug  string `json:"slug"`
}

// UserView is the read schema of a user.
type UserView struct {
	Email        string `json:"email"`
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

// IngredientLineView is an ingredient line of a recipe read schema.
type IngredientLineView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeView is the full read schema of a recipe.
type RecipeView struct {
	ID               int64                `json:"id"`
	Tags             []domain.Tag         `json:"tags"`
	Author           UserView             `json:"author"`
	Ingredients      []IngredientLineView `json:"ingredients"`
	IsFavorited      bool                 `json:"is_favorited"`
	IsInShoppingCart bool                 `json:"is_in_shopping_cart"`
	Name             string               `json:"name"`
	Image            string               `json:"image"`
	Text             string               `json:"text"`
	CookingTime      int                  `json:"cooking_time"`
}

// RecipeShort is the compact projection returned by toggles and
// subscription previews.
type RecipeShort struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// SubscriptionView is a followed author with a preview of their recipes.
type SubscriptionView struct {
	UserView
	Recipes      []RecipeShort `json:"recipes"`
	RecipesCount int64         `json:"recipes_count"`
}

func userView(u domain.User, subscribed bool) UserView {
	return UserView{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}

func recipeShort(r domain.Recipe) RecipeShort {
	return RecipeShort{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

// recipeViews assembles read views for recipes, loading favorite, cart and
// subscription flags for the principal with one query each.
func recipeViews(ctx context.Context, db *gorm.DB, p domain.Principal, recipes []domain.Recipe) ([]RecipeView, error) {
	out := make([]RecipeView, 0, len(recipes))
	if len(recipes) == 0 {
		return out, nil
	}

	ids := make([]int64, len(recipes))
	authorIDs := make([]int64, 0, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
		authorIDs = append(authorIDs, r.AuthorID)
	}

	fav, err := repo.LinkedRecipeIDs(ctx, db, repo.LinkFavorite, p.UserID, ids)
	if err != nil {
		return nil, err
	}
	cart, err := repo.LinkedRecipeIDs(ctx, db, repo.LinkCart, p.UserID, ids)
	if err != nil {
		return nil, err
	}
	subs, err := repo.SubscribedAuthorIDs(ctx, db, p.UserID, authorIDs)
	if err != nil {
		return nil, err
	}

	for _, r := range recipes {
		tags := r.Tags
		if tags == nil {
			tags = []domain.Tag{}
		}
		lines := make([]IngredientLineView, len(r.Ingredients))
		for i, l := range r.Ingredients {
			lines[i] = IngredientLineView{
				ID:              l.IngredientID,
				Name:            l.Ingredient.Name,
				MeasurementUnit: l.Ingredient.MeasurementUnit,
				Amount:          l.Amount,
			}
		}
		out = append(out, RecipeView{
			ID:               r.ID,
			Tags:             tags,
			Author:           userView(r.Author, subs[r.AuthorID]),
			Ingredients:      lines,
			IsFavorited:      fav[r.ID],
			IsInShoppingCart: cart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		})
	}
	return out, nil
}
