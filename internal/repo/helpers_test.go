package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// newRepoDB returns a migrated in-memory database unique to the test.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", name)
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
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u := &domain.User{Email: username + "@example.com", Username: username, FirstName: "F", LastName: "L"}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedIngredient(t *testing.T, db *gorm.DB, name, unit string) *domain.Ingredient {
	t.Helper()
	in := &domain.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(in).Error; err != nil {
		t.Fatalf("seed ingredient: %v", err)
	}
	return in
}

func seedTag(t *testing.T, db *gorm.DB, name, slug string) *domain.Tag {
	t.Helper()
	tag := &domain.Tag{Name: name, Color: "#E26C2D", Slug: slug}
	if err := CreateTag(context.Background(), db, tag); err != nil {
		t.Fatalf("seed tag: %v", err)
	}
	return tag
}

type line struct {
	ing    *domain.Ingredient
	amount int
}

func seedRecipe(t *testing.T, db *gorm.DB, author *domain.User, name string, tags []domain.Tag, lines ...line) *domain.Recipe {
	t.Helper()
	r := &domain.Recipe{Name: name, AuthorID: author.ID, Text: "text of " + name, CookingTime: 10}
	ri := make([]domain.RecipeIngredient, len(lines))
	for i, l := range lines {
		ri[i] = domain.RecipeIngredient{IngredientID: l.ing.ID, Amount: l.amount}
	}
	if err := CreateRecipe(context.Background(), db, r, tags, ri); err != nil {
		t.Fatalf("seed recipe: %v", err)
	}
	return r
}
