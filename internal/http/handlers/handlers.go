// Package handlers exposes the REST endpoints of the recipes API.
//
// Handlers are transport-thin: they bind and validate input, resolve the
// caller's principal, call application services through narrow interfaces,
// and translate results (or error kinds) into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/http/middleware"
	"github.com/tbourn/go-recipes-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// RecipeService covers catalog reads and recipe mutations.
type RecipeService interface {
	List(ctx context.Context, p domain.Principal, q services.CatalogQuery, page, pageSize int) ([]services.RecipeView, int64, error)
	Get(ctx context.Context, p domain.Principal, id int64) (*services.RecipeView, error)
	Create(ctx context.Context, p domain.Principal, in services.RecipeInput) (*services.RecipeView, error)
	Update(ctx context.Context, p domain.Principal, id int64, in services.RecipeInput) (*services.RecipeView, error)
	Delete(ctx context.Context, p domain.Principal, id int64) error
}

// ToggleService adds or removes a (user, recipe) link such as a favorite.
type ToggleService interface {
	Add(ctx context.Context, p domain.Principal, recipeID int64) (*services.RecipeShort, error)
	Remove(ctx context.Context, p domain.Principal, recipeID int64) error
}

// ShoppingListService renders the caller's shopping list.
type ShoppingListService interface {
	Download(ctx context.Context, p domain.Principal, format string) (*services.Document, error)
}

// SubscriptionService manages follower -> author edges.
type SubscriptionService interface {
	Subscribe(ctx context.Context, p domain.Principal, authorID int64, recipesLimit int) (*services.SubscriptionView, error)
	Unsubscribe(ctx context.Context, p domain.Principal, authorID int64) error
	List(ctx context.Context, p domain.Principal, page, pageSize, recipesLimit int) ([]services.SubscriptionView, int64, error)
}

// ReferenceService serves tags and ingredients.
type ReferenceService interface {
	Tags(ctx context.Context) ([]domain.Tag, error)
	Tag(ctx context.Context, id int64) (*domain.Tag, error)
	CreateTag(ctx context.Context, p domain.Principal, in services.TagInput) (*domain.Tag, error)
	Ingredients(ctx context.Context, prefix string) ([]domain.Ingredient, error)
	Ingredient(ctx context.Context, id int64) (*domain.Ingredient, error)
	IngredientsVersion(ctx context.Context) (string, error)
	TagsVersion(ctx context.Context) (string, error)
}

// UserService reads user profiles.
type UserService interface {
	List(ctx context.Context, p domain.Principal, page, pageSize int) ([]services.UserView, int64, error)
	Get(ctx context.Context, p domain.Principal, id int64) (*services.UserView, error)
	Me(ctx context.Context, p domain.Principal) (*services.UserView, error)
}

// IdempotencyRecorder remembers which resource a keyed create produced so a
// retried request can be answered with the same resource.
type IdempotencyRecorder interface {
	Record(ctx context.Context, userID int64, scope, key string, resourceID int64, status int) error
}

//
// Handler wiring
//

// Deps bundles the services the handlers depend on. Idempotency is optional.
type Deps struct {
	Recipes       RecipeService
	Favorites     ToggleService
	Cart          ToggleService
	ShoppingList  ShoppingListService
	Subscriptions SubscriptionService
	Reference     ReferenceService
	Users         UserService
	Idempotency   IdempotencyRecorder
}

// Handlers groups all HTTP endpoints.
type Handlers struct {
	recipes       RecipeService
	favorites     ToggleService
	cart          ToggleService
	shoppingList  ShoppingListService
	subscriptions SubscriptionService
	reference     ReferenceService
	users         UserService
	idem          IdempotencyRecorder
}

// New constructs Handlers bound to the given services and registers the
// custom validation rules with Gin's validator.
func New(d Deps) *Handlers {
	RegisterValidators()
	return &Handlers{
		recipes:       d.Recipes,
		favorites:     d.Favorites,
		cart:          d.Cart,
		shoppingList:  d.ShoppingList,
		subscriptions: d.Subscriptions,
		reference:     d.Reference,
		users:         d.Users,
		idem:          d.Idempotency,
	}
}

//
// Helpers
//

// principal returns the caller resolved by the auth middleware.
func principal(c *gin.Context) domain.Principal {
	return middleware.PrincipalFrom(c)
}

// idParam parses a positive integer path parameter. It writes a 404 and
// returns false when the value is not a valid id, matching what a lookup of
// a nonexistent id would produce.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "not found")
		return 0, false
	}
	return id, true
}

// recordIdempotent stores the outcome of a keyed create. Failures are logged
// and otherwise ignored: the resource already exists.
func (h *Handlers) recordIdempotent(c *gin.Context, resourceID int64, status int) {
	key, present := middleware.GetIdempotencyKey(c)
	p := principal(c)
	if h.idem == nil || !present || !p.Authenticated() {
		return
	}
	scope := middleware.IdempotencyScope(c)
	if err := h.idem.Record(c.Request.Context(), p.UserID, scope, key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).
			Str("scope", scope).
			Msg("idempotency record failed")
	}
}

//
// Validation
//

var (
	registerOnce sync.Once
	slugRE       = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// RegisterValidators installs the "slug" rule and JSON field naming on Gin's
// validator engine. It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugRE.MatchString(fl.Field().String())
		})
	})
}

// bindJSON decodes the body into dst and validates it. On failure it writes
// the error response itself and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		failFields(c, http.StatusBadRequest, ErrCodeValidation, "invalid input", fieldMessages(verrs))
		return false
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
	return false
}

// fieldMessages converts validator errors into a field -> message map keyed
// by JSON path (e.g. "ingredients[0].amount").
func fieldMessages(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		key := fe.Namespace()
		if _, rest, found := strings.Cut(key, "."); found {
			key = rest
		}
		if _, seen := out[key]; !seen {
			out[key] = describe(fe)
		}
	}
	return out
}

func describe(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		if isList {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "hexcolor", "len":
		return "must be a #RRGGBB color"
	case "slug":
		return "may contain only letters, digits, '-' and '_'"
	case "unique":
		return "must not contain duplicates"
	}
	return "is invalid"
}
