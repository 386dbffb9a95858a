// Package domain defines the persistence models for users, reference data
// (ingredients and tags), recipes and the per-user join entities (favorites,
// shopping cart entries and subscriptions). These types are mapped with GORM
// and form the core data layer of the recipes backend.
package domain

import "time"

// User is a registered account. Accounts are provisioned outside this
// service; the API only reads them.
type User struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Email     string    `json:"email"      gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email"`
	Username  string    `json:"username"   gorm:"type:varchar(150);not null;uniqueIndex:ux_users_username"`
	FirstName string    `json:"first_name" gorm:"type:varchar(150);not null;default:''"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(150);not null;default:''"`
	IsAdmin   bool      `json:"-"          gorm:"not null;default:false"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Ingredient is immutable reference data. The (name, measurement_unit) pair
// is unique so that bulk imports can be replayed safely.
type Ingredient struct {
	ID              int64  `json:"id"               gorm:"primaryKey;autoIncrement"`
	Name            string `json:"name"             gorm:"type:varchar(200);not null;index;uniqueIndex:ux_ingredient_name_unit,priority:1"`
	MeasurementUnit string `json:"measurement_unit" gorm:"type:varchar(200);not null;uniqueIndex:ux_ingredient_name_unit,priority:2"`
}

// TableName returns the database table name for Ingredient.
func (Ingredient) TableName() string { return "ingredients" }

// Tag labels recipes (breakfast, dinner, ...). Color is a "#RRGGBB" hex
// string and Slug is the URL-safe identifier used by catalog filters.
type Tag struct {
	ID    int64  `json:"id"    gorm:"primaryKey;autoIncrement"`
	Name  string `json:"name"  gorm:"type:varchar(200);not null;uniqueIndex:ux_tags_name"`
	Color string `json:"color" gorm:"type:varchar(7);not null"`
	Slug  string `json:"slug"  gorm:"type:varchar(200);not null;uniqueIndex:ux_tags_slug"`
}

// TableName returns the database table name for Tag.
func (Tag) TableName() string { return "tags" }

// Recipe is owned by its author and carries a tag set plus an ordered list
// of ingredient lines.
//
// Fields:
//   - Name / Text: together unique across recipes (checked by the service
//     layer, since TEXT columns cannot be uniquely indexed on every driver).
//   - CookingTime: minutes, strictly positive.
//   - Image: opaque reference to the uploaded image (URL or data URI).
//   - Tags: many-to-many via recipe_tags.
//   - Ingredients: ordered by Position.
type Recipe struct {
	ID          int64     `json:"id"           gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name"         gorm:"type:varchar(200);not null;index"`
	AuthorID    int64     `json:"author_id"    gorm:"not null;index"`
	Text        string    `json:"text"         gorm:"type:text;not null"`
	CookingTime int       `json:"cooking_time" gorm:"not null;check:cooking_time > 0"`
	Image       string    `json:"image"        gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`

	Author      User               `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Tags        []Tag              `json:"-" gorm:"many2many:recipe_tags;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Ingredients []RecipeIngredient `json:"-" gorm:"foreignKey:RecipeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }

// RecipeIngredient is one ingredient line of a recipe: an ingredient and a
// positive amount expressed in the ingredient's measurement unit. A recipe
// lists each ingredient at most once.
type RecipeIngredient struct {
	ID           int64 `json:"-"      gorm:"primaryKey;autoIncrement"`
	RecipeID     int64 `json:"-"      gorm:"not null;uniqueIndex:ux_recipe_ingredient,priority:1"`
	IngredientID int64 `json:"id"     gorm:"not null;index;uniqueIndex:ux_recipe_ingredient,priority:2"`
	Amount       int   `json:"amount" gorm:"not null;check:amount > 0"`
	Position     int   `json:"-"      gorm:"not null;default:0"`

	Ingredient Ingredient `json:"-" gorm:"foreignKey:IngredientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for RecipeIngredient.
func (RecipeIngredient) TableName() string { return "recipe_ingredients" }

// Favorite marks a recipe as a favorite of a user. Rows are created and
// destroyed, never updated; (user_id, recipe_id) is unique.
type Favorite struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"not null;index;uniqueIndex:ux_favorite_user_recipe,priority:1"`
	RecipeID  int64 `gorm:"not null;index;uniqueIndex:ux_favorite_user_recipe,priority:2"`
	CreatedAt time.Time

	User   User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Recipe Recipe `gorm:"foreignKey:RecipeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Favorite.
func (Favorite) TableName() string { return "favorites" }

// CartEntry puts a recipe into a user's shopping cart. Same lifecycle and
// uniqueness as Favorite.
type CartEntry struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"not null;index;uniqueIndex:ux_cart_user_recipe,priority:1"`
	RecipeID  int64 `gorm:"not null;index;uniqueIndex:ux_cart_user_recipe,priority:2"`
	CreatedAt time.Time

	User   User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Recipe Recipe `gorm:"foreignKey:RecipeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CartEntry.
func (CartEntry) TableName() string { return "shopping_cart" }

// Subscription is a follow edge from UserID (the follower) to AuthorID.
// Self-subscriptions are rejected by the service and by a check constraint.
type Subscription struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"not null;index;uniqueIndex:ux_subscription_user_author,priority:1"`
	AuthorID  int64 `gorm:"not null;index;uniqueIndex:ux_subscription_user_author,priority:2;check:chk_subscription_not_self,user_id <> author_id"`
	CreatedAt time.Time

	User   User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Author User `gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }
