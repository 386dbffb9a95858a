package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

func TestRecipe_Create_ReturnsReadSchema(t *testing.T) {
	f := newFixture(t)
	svc := NewRecipeService(f.db)

	v, err := svc.Create(context.Background(), as(f.alice), RecipeInput{
		Name:        "  Pancakes ",
		Text:        "Mix and fry",
		Image:       "img",
		CookingTime: 20,
		Tags:        []int64{f.dinner.ID, f.lunch.ID},
		Ingredients: []IngredientAmount{{ID: f.flour.ID, Amount: 200}, {ID: f.egg.ID, Amount: 2}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Name != "Pancakes" || v.Author.ID != f.alice.ID || v.CookingTime != 20 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if len(v.Tags) != 2 || v.Tags[0].Slug != "dinner" {
		t.Fatalf("tags: %+v", v.Tags)
	}
	if len(v.Ingredients) != 2 ||
		v.Ingredients[0] != (IngredientLineView{ID: f.flour.ID, Name: "Flour", MeasurementUnit: "g", Amount: 200}) {
		t.Fatalf("ingredients: %+v", v.Ingredients)
	}
	if v.IsFavorited || v.IsInShoppingCart || v.Author.IsSubscribed {
		t.Fatalf("fresh recipe must have no flags set: %+v", v)
	}
}

func TestRecipe_Create_Anonymous(t *testing.T) {
	f := newFixture(t)
	_, err := NewRecipeService(f.db).Create(context.Background(), domain.Anonymous, RecipeInput{})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRecipe_Create_ValidationCollectsAllFields(t *testing.T) {
	f := newFixture(t)
	_, err := NewRecipeService(f.db).Create(context.Background(), as(f.alice), RecipeInput{
		CookingTime: 0,
		Ingredients: []IngredientAmount{{ID: f.flour.ID, Amount: 0}, {ID: f.flour.ID, Amount: 1}},
		Tags:        nil,
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, field := range []string{"name", "text", "image", "cooking_time", "ingredients", "tags"} {
		if _, ok := ve.Fields[field]; !ok {
			t.Fatalf("missing field error for %q: %+v", field, ve.Fields)
		}
	}
}

func TestRecipe_Create_RejectsZeroLinesOrZeroTags(t *testing.T) {
	f := newFixture(t)
	svc := NewRecipeService(f.db)
	base := RecipeInput{Name: "n", Text: "t", Image: "i", CookingTime: 1}

	noLines := base
	noLines.Tags = []int64{f.lunch.ID}
	if _, err := svc.Create(context.Background(), as(f.alice), noLines); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero lines: expected ErrValidation, got %v", err)
	}

	noTags := base
	noTags.Ingredients = []IngredientAmount{{ID: f.flour.ID, Amount: 1}}
	if _, err := svc.Create(context.Background(), as(f.alice), noTags); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero tags: expected ErrValidation, got %v", err)
	}

	var n int64
	f.db.Model(&domain.Recipe{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected recipes must not be stored, got %d", n)
	}
}

func TestRecipe_Create_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	svc := NewRecipeService(f.db)
	in := RecipeInput{Name: "n", Text: "t", Image: "i", CookingTime: 1,
		Tags: []int64{f.lunch.ID}, Ingredients: []IngredientAmount{{ID: 999, Amount: 1}}}
	if _, err := svc.Create(context.Background(), as(f.alice), in); !errors.Is(err, ErrIngredientNotFound) {
		t.Fatalf("expected ErrIngredientNotFound, got %v", err)
	}
	in.Ingredients = []IngredientAmount{{ID: f.flour.ID, Amount: 1}}
	in.Tags = []int64{999}
	if _, err := svc.Create(context.Background(), as(f.alice), in); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
}

func TestRecipe_Create_DuplicateNameText(t *testing.T) {
	f := newFixture(t)
	f.recipe(t, f.alice, "Bread", IngredientAmount{ID: f.flour.ID, Amount: 500})

	_, err := NewRecipeService(f.db).Create(context.Background(), as(f.bob), RecipeInput{
		Name: "Bread", Text: "how to make Bread", Image: "i", CookingTime: 5,
		Tags: []int64{f.lunch.ID}, Ingredients: []IngredientAmount{{ID: f.egg.ID, Amount: 1}},
	})
	if !errors.Is(err, ErrRecipeExists) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrRecipeExists, got %v", err)
	}
}

func TestRecipe_Update_ReplacesTagsAndLines(t *testing.T) {
	f := newFixture(t)
	svc := NewRecipeService(f.db)
	r := f.recipe(t, f.alice, "Bread", IngredientAmount{ID: f.flour.ID, Amount: 500})

	v, err := svc.Update(context.Background(), as(f.alice), r.ID, RecipeInput{
		Name: "Sweet bread", Text: "new", CookingTime: 45,
		Tags:        []int64{f.dinner.ID},
		Ingredients: []IngredientAmount{{ID: f.sugar.ID, Amount: 10}, {ID: f.egg.ID, Amount: 1}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v.Name != "Sweet bread" || v.Image != r.Image || v.CookingTime != 45 {
		t.Fatalf("fields: %+v", v)
	}
	if len(v.Tags) != 1 || v.Tags[0].ID != f.dinner.ID {
		t.Fatalf("tags: %+v", v.Tags)
	}
	if len(v.Ingredients) != 2 || v.Ingredients[0].ID != f.sugar.ID || v.Ingredients[1].ID != f.egg.ID {
		t.Fatalf("ingredients: %+v", v.Ingredients)
	}
}

func TestRecipe_Update_Permissions(t *testing.T) {
	f := newFixture(t)
	svc := NewRecipeService(f.db)
	r := f.recipe(t, f.alice, "Bread", IngredientAmount{ID: f.flour.ID, Amount: 500})
	in := RecipeInput{Name: "x", Text: "y", CookingTime: 1,
		Tags: []int64{f.lunch.ID}, Ingredients: []IngredientAmount{{ID: f.flour.ID, Amount: 1}}}

	if _, err := svc.Update(context.Background(), as(f.bob), r.ID, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-author: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Update(context.Background(), domain.Anonymous, r.ID, in); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Update(context.Background(), as(f.alice), 999, in); !errors.Is(err, ErrRecipeNotFound) {
		t.Fatalf("missing: expected ErrRecipeNotFound, got %v", err)
	}
	if _, err := svc.Update(context.Background(), as(f.admin), r.ID, in); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestRecipe_Delete(t *testing.T) {
	f := newFixture(t)
	svc := NewRecipeService(f.db)
	r := f.recipe(t, f.alice, "Bread", IngredientAmount{ID: f.flour.ID, Amount: 500})

	if _, err := NewCartService(f.db).Add(context.Background(), as(f.bob), r.ID); err != nil {
		t.Fatalf("cart add: %v", err)
	}
	if err := svc.Delete(context.Background(), as(f.bob), r.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), as(f.alice), r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), as(f.alice), r.ID); !errors.Is(err, ErrRecipeNotFound) {
		t.Fatalf("expected ErrRecipeNotFound after delete, got %v", err)
	}
	var n int64
	f.db.Model(&domain.CartEntry{}).Count(&n)
	if n != 0 {
		t.Fatalf("cart entries must be removed with the recipe")
	}
}

func TestRecipe_List_FiltersAndFlags(t *testing.T) {
	f := newFixture(t)
	svc := NewRecipeService(f.db)
	ctx := context.Background()
	a := f.recipe(t, f.alice, "A", IngredientAmount{ID: f.flour.ID, Amount: 1})
	b := f.recipe(t, f.bob, "B", IngredientAmount{ID: f.flour.ID, Amount: 1})

	if _, err := NewFavoriteService(f.db).Add(ctx, as(f.bob), a.ID); err != nil {
		t.Fatalf("favorite: %v", err)
	}

	all, total, err := svc.List(ctx, as(f.bob), CatalogQuery{}, 1, 10)
	if err != nil || total != 2 || len(all) != 2 || all[0].ID != b.ID {
		t.Fatalf("List = %+v, %d, %v", all, total, err)
	}
	if !all[1].IsFavorited || all[0].IsFavorited {
		t.Fatalf("favorite flag wrong: %+v", all)
	}

	favs, total, _ := svc.List(ctx, as(f.bob), CatalogQuery{IsFavorited: true}, 1, 10)
	if total != 1 || favs[0].ID != a.ID {
		t.Fatalf("favorited filter: %+v", favs)
	}

	// Anonymous callers get the unfiltered set and no flags.
	anon, total, _ := svc.List(ctx, domain.Anonymous, CatalogQuery{IsFavorited: true, InCart: true}, 1, 10)
	if total != 2 || anon[1].IsFavorited {
		t.Fatalf("anonymous: %+v", anon)
	}

	byAuthor, total, _ := svc.List(ctx, domain.Anonymous, CatalogQuery{AuthorID: f.alice.ID}, 1, 10)
	if total != 1 || byAuthor[0].ID != a.ID {
		t.Fatalf("author filter: %+v", byAuthor)
	}

	none, total, err := svc.List(ctx, domain.Anonymous, CatalogQuery{TagSlugs: []string{"dinner"}}, 1, 10)
	if err != nil || total != 0 || len(none) != 0 {
		t.Fatalf("tag filter: %+v %d %v", none, total, err)
	}
}

func TestRecipe_Get_AuthorSubscriptionFlag(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, "A", IngredientAmount{ID: f.flour.ID, Amount: 1})
	subs := &SubscriptionService{DB: f.db}
	if _, err := subs.Subscribe(context.Background(), as(f.bob), f.alice.ID, AllRecipes); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	v, err := NewRecipeService(f.db).Get(context.Background(), as(f.bob), r.ID)
	if err != nil || !v.Author.IsSubscribed {
		t.Fatalf("Get = %+v, %v", v, err)
	}
}
