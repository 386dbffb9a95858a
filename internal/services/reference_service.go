// Package services – ReferenceService
//
// This file implements ReferenceService, which serves the immutable
// reference data (ingredients) and the admin-managed tags.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/repo"
)

var (
	slugRE  = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	colorRE = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// ReferenceService reads ingredients and tags and creates tags.
type ReferenceService struct {
	DB *gorm.DB

	// fold lower-cases ingredient search prefixes.
	fold cases.Caser
}

// NewReferenceService returns a ReferenceService.
func NewReferenceService(db *gorm.DB) *ReferenceService {
	return &ReferenceService{DB: db, fold: cases.Lower(language.Und)}
}

// Tags returns every tag ordered by name.
func (s *ReferenceService) Tags(ctx context.Context) ([]domain.Tag, error) {
	return repo.ListTags(ctx, s.DB)
}

// Tag returns one tag.
func (s *ReferenceService) Tag(ctx context.Context, id int64) (*domain.Tag, error) {
	t, err := repo.GetTag(ctx, s.DB, id)
	if repo.IsNotFound(err) {
		return nil, ErrTagNotFound
	}
	return t, err
}

// CreateTag validates in and stores a new tag. Admin only.
func (s *ReferenceService) CreateTag(ctx context.Context, p domain.Principal, in TagInput) (*domain.Tag, error) {
	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}
	if !p.Admin {
		return nil, ErrAdminOnly
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Color = strings.TrimSpace(in.Color)

	fe := fieldErrors{}
	if in.Name == "" {
		fe.add("name", "this field is required")
	} else if len([]rune(in.Name)) > 200 {
		fe.add("name", fmt.Sprintf("must be at most %d characters", 200))
	}
	if !colorRE.MatchString(in.Color) {
		fe.add("color", "must be a hex color like #E26C2D")
	}
	if !slugRE.MatchString(in.Slug) {
		fe.add("slug", "may contain only letters, digits, '-' and '_'")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	t := &domain.Tag{Name: in.Name, Color: strings.ToUpper(in.Color), Slug: in.Slug}
	if err := repo.CreateTag(ctx, s.DB, t); err != nil {
		if repo.IsDuplicate(err) {
			return nil, ErrTagExists
		}
		return nil, err
	}
	return t, nil
}

// Ingredients returns ingredients whose name starts with prefix, ignoring
// case, ordered by name.
func (s *ReferenceService) Ingredients(ctx context.Context, prefix string) ([]domain.Ingredient, error) {
	prefix = s.fold.String(strings.TrimSpace(prefix))
	return repo.SearchIngredients(ctx, s.DB, prefix)
}

// Ingredient returns one ingredient.
func (s *ReferenceService) Ingredient(ctx context.Context, id int64) (*domain.Ingredient, error) {
	in, err := repo.GetIngredient(ctx, s.DB, id)
	if repo.IsNotFound(err) {
		return nil, ErrIngredientNotFound
	}
	return in, err
}

// IngredientsVersion returns an opaque token that changes whenever the
// ingredient table does. It is used as an HTTP entity tag.
func (s *ReferenceService) IngredientsVersion(ctx context.Context) (string, error) {
	st, err := repo.IngredientStats(ctx, s.DB)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ingredients-%d-%d", st.Count, st.MaxID), nil
}

// TagsVersion is IngredientsVersion for tags.
func (s *ReferenceService) TagsVersion(ctx context.Context) (string, error) {
	st, err := repo.TagStats(ctx, s.DB)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tags-%d-%d", st.Count, st.MaxID), nil
}
