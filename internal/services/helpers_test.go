package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fixture struct {
	db    *gorm.DB
	alice domain.User
	bob   domain.User
	admin domain.User

	flour, sugar, egg domain.Ingredient
	lunch, dinner     domain.Tag
}

func as(u domain.User) domain.Principal {
	return domain.Principal{UserID: u.ID, Admin: u.IsAdmin}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return seedFixture(t, newTestDB(t))
}

// newPooledFixture seeds a file database opened the way the server opens
// it, so concurrent requests use separate pooled connections.
func newPooledFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "recipes.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return seedFixture(t, db)
}

func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{db: db}
	mk := func(name string, admin bool) domain.User {
		u := domain.User{Email: name + "@example.com", Username: name, IsAdmin: admin}
		if err := f.db.Create(&u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return u
	}
	f.alice, f.bob, f.admin = mk("alice", false), mk("bob", false), mk("root", true)

	ing := func(name, unit string) domain.Ingredient {
		in := domain.Ingredient{Name: name, MeasurementUnit: unit}
		if err := f.db.Create(&in).Error; err != nil {
			t.Fatalf("seed ingredient: %v", err)
		}
		return in
	}
	f.flour, f.sugar, f.egg = ing("Flour", "g"), ing("Sugar", "g"), ing("Egg", "pcs")

	tag := func(name, slug string) domain.Tag {
		tg := domain.Tag{Name: name, Color: "#49B64E", Slug: slug}
		if err := f.db.Create(&tg).Error; err != nil {
			t.Fatalf("seed tag: %v", err)
		}
		return tg
	}
	f.lunch, f.dinner = tag("Lunch", "lunch"), tag("Dinner", "dinner")
	return f
}

func (f *fixture) recipe(t *testing.T, author domain.User, name string, lines ...IngredientAmount) *RecipeView {
	t.Helper()
	v, err := NewRecipeService(f.db).Create(context.Background(), as(author), RecipeInput{
		Name:        name,
		Text:        "how to make " + name,
		Image:       "data:image/png;base64,AAAA",
		CookingTime: 15,
		Tags:        []int64{f.lunch.ID},
		Ingredients: lines,
	})
	if err != nil {
		t.Fatalf("create recipe %q: %v", name, err)
	}
	return v
}
