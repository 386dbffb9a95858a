// Package services – RecipeService
//
// This file implements RecipeService, which owns the recipe catalog: filtered
// and paginated listing, single-recipe reads, and validated create, update and
// delete. Writes run in one transaction per call; update replaces the full tag
// set and the full ingredient-line set.
//
// Observability: public methods are OpenTelemetry-instrumented and notable
// business events are logged with the request-scoped zerolog logger.
package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/observability"
	"github.com/tbourn/go-recipes-backend/internal/repo"
	"github.com/tbourn/go-recipes-backend/internal/utils"
)

// CatalogQuery holds the catalog filters. Flag filters only apply to
// authenticated principals.
type CatalogQuery struct {
	TagSlugs    []string
	AuthorID    int64
	IsFavorited bool
	InCart      bool
}

// RecipeService provides catalog reads and recipe mutations.
type RecipeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// NameMaxLen caps recipe names by rune length.
	NameMaxLen int
}

// NewRecipeService constructs a RecipeService with default limits.
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{DB: db, NameMaxLen: 200}
}

func recipeTracer() trace.Tracer { return observability.Tracer("services/RecipeService") }

// filter converts a catalog query into a repository filter for principal p.
func (q CatalogQuery) filter(p domain.Principal) repo.RecipeFilter {
	f := repo.RecipeFilter{TagSlugs: q.TagSlugs, AuthorID: q.AuthorID}
	if p.Authenticated() {
		if q.IsFavorited {
			f.FavoritedBy = p.UserID
		}
		if q.InCart {
			f.InCartOf = p.UserID
		}
	}
	return f
}

// List returns a page of recipes matching q, newest first, with the total
// number of matches.
func (s *RecipeService) List(ctx context.Context, p domain.Principal, q CatalogQuery, page, pageSize int) ([]RecipeView, int64, error) {
	ctx, span := recipeTracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int64("user.id", p.UserID),
			attribute.StringSlice("filter.tags", q.TagSlugs),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	pg := utils.NewPage(page, pageSize)
	f := q.filter(p)

	total, err := repo.CountRecipes(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []RecipeView{}, 0, nil
	}

	items, err := repo.ListRecipesPage(ctx, s.DB, f, pg.Offset(), pg.Size)
	if err != nil {
		return nil, 0, err
	}
	views, err := recipeViews(ctx, s.DB, p, items)
	return views, total, err
}

// Get returns one recipe in its read schema.
func (s *RecipeService) Get(ctx context.Context, p domain.Principal, id int64) (*RecipeView, error) {
	ctx, span := recipeTracer().Start(ctx, "Get", trace.WithAttributes(attribute.Int64("recipe.id", id)))
	defer span.End()

	return s.load(ctx, s.DB, p, id)
}

func (s *RecipeService) load(ctx context.Context, db *gorm.DB, p domain.Principal, id int64) (*RecipeView, error) {
	r, err := repo.GetRecipe(ctx, db, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	views, err := recipeViews(ctx, db, p, []domain.Recipe{*r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create validates in and stores a new recipe authored by p.
func (s *RecipeService) Create(ctx context.Context, p domain.Principal, in RecipeInput) (*RecipeView, error) {
	ctx, span := recipeTracer().Start(ctx, "Create", trace.WithAttributes(attribute.Int64("user.id", p.UserID)))
	defer span.End()

	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}
	in = normalizeInput(in)
	if err := s.validate(in, true); err != nil {
		return nil, err
	}

	var out *RecipeView
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, lines, err := resolveReferences(ctx, tx, in)
		if err != nil {
			return err
		}
		taken, err := repo.RecipeNameTextTaken(ctx, tx, in.Name, in.Text, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrRecipeExists
		}

		r := &domain.Recipe{
			Name:        in.Name,
			AuthorID:    p.UserID,
			Text:        in.Text,
			CookingTime: in.CookingTime,
			Image:       in.Image,
		}
		if err := repo.CreateRecipe(ctx, tx, r, tags, lines); err != nil {
			return err
		}
		out, err = s.load(ctx, tx, p, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int64("recipe_id", out.ID).Int64("author_id", p.UserID).Msg("recipe created")
	return out, nil
}

// Update replaces the recipe's fields, tags and ingredient lines. Only the
// author or an admin may update. An empty image keeps the current one.
func (s *RecipeService) Update(ctx context.Context, p domain.Principal, id int64, in RecipeInput) (*RecipeView, error) {
	ctx, span := recipeTracer().Start(ctx, "Update",
		trace.WithAttributes(attribute.Int64("recipe.id", id), attribute.Int64("user.id", p.UserID)),
	)
	defer span.End()

	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}
	in = normalizeInput(in)

	var out *RecipeView
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetRecipeShort(ctx, tx, id)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrRecipeNotFound
			}
			return err
		}
		if !p.CanModify(cur.AuthorID) {
			return ErrNotRecipeAuthor
		}
		if err := s.validate(in, false); err != nil {
			return err
		}

		tags, lines, err := resolveReferences(ctx, tx, in)
		if err != nil {
			return err
		}
		taken, err := repo.RecipeNameTextTaken(ctx, tx, in.Name, in.Text, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrRecipeExists
		}

		cur.Name, cur.Text, cur.CookingTime = in.Name, in.Text, in.CookingTime
		if in.Image != "" {
			cur.Image = in.Image
		}
		if err := repo.UpdateRecipeFields(ctx, tx, cur); err != nil {
			return err
		}
		if err := repo.ReplaceRecipeTags(ctx, tx, cur, tags); err != nil {
			return err
		}
		if err := repo.ReplaceRecipeLines(ctx, tx, id, lines); err != nil {
			return err
		}
		out, err = s.load(ctx, tx, p, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Int64("recipe_id", id).Msg("recipe updated")
	return out, nil
}

// Delete removes a recipe and everything attached to it. Only the author or
// an admin may delete.
func (s *RecipeService) Delete(ctx context.Context, p domain.Principal, id int64) error {
	ctx, span := recipeTracer().Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("recipe.id", id), attribute.Int64("user.id", p.UserID)),
	)
	defer span.End()

	if !p.Authenticated() {
		return ErrLoginRequired
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetRecipeShort(ctx, tx, id)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrRecipeNotFound
			}
			return err
		}
		if !p.CanModify(cur.AuthorID) {
			return ErrNotRecipeAuthor
		}
		return repo.DeleteRecipe(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Int64("recipe_id", id).Int64("user_id", p.UserID).Msg("recipe deleted")
	return nil
}

// validate checks every field of in and reports all violations together.
func (s *RecipeService) validate(in RecipeInput, creating bool) error {
	fe := fieldErrors{}

	switch {
	case in.Name == "":
		fe.add("name", "this field is required")
	case s.NameMaxLen > 0 && utf8.RuneCountInString(in.Name) > s.NameMaxLen:
		fe.add("name", fmt.Sprintf("must be at most %d characters", s.NameMaxLen))
	}
	if in.Text == "" {
		fe.add("text", "this field is required")
	}
	if creating && in.Image == "" {
		fe.add("image", "this field is required")
	}
	if in.CookingTime <= 0 {
		fe.add("cooking_time", "must be greater than 0")
	}

	if len(in.Ingredients) == 0 {
		fe.add("ingredients", "at least one ingredient is required")
	}
	seenIng := make(map[int64]bool, len(in.Ingredients))
	for _, l := range in.Ingredients {
		if l.Amount <= 0 {
			fe.add("ingredients", "amount must be greater than 0")
		}
		if seenIng[l.ID] {
			fe.add("ingredients", "ingredients must not repeat")
		}
		seenIng[l.ID] = true
	}

	if len(in.Tags) == 0 {
		fe.add("tags", "at least one tag is required")
	}
	seenTag := make(map[int64]bool, len(in.Tags))
	for _, id := range in.Tags {
		if seenTag[id] {
			fe.add("tags", "tags must not repeat")
		}
		seenTag[id] = true
	}

	return fe.err()
}

// resolveReferences loads the referenced tags and builds the ingredient
// lines, failing with a not-found error for unknown IDs.
func resolveReferences(ctx context.Context, tx *gorm.DB, in RecipeInput) ([]domain.Tag, []domain.RecipeIngredient, error) {
	tags, err := repo.TagsByIDs(ctx, tx, in.Tags)
	if err != nil {
		return nil, nil, err
	}
	if len(tags) != len(in.Tags) {
		return nil, nil, ErrTagNotFound
	}

	ids := make([]int64, len(in.Ingredients))
	for i, l := range in.Ingredients {
		ids[i] = l.ID
	}
	ings, err := repo.IngredientsByIDs(ctx, tx, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(ings) != len(ids) {
		return nil, nil, ErrIngredientNotFound
	}

	lines := make([]domain.RecipeIngredient, len(in.Ingredients))
	for i, l := range in.Ingredients {
		lines[i] = domain.RecipeIngredient{IngredientID: l.ID, Amount: l.Amount, Position: i}
	}
	return tags, lines, nil
}

func normalizeInput(in RecipeInput) RecipeInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Text = strings.TrimSpace(in.Text)
	in.Image = strings.TrimSpace(in.Image)
	return in
}
