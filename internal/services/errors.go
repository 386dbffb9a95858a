// Package services defines the business logic for recipes, favorites, the
// shopping cart, subscriptions and reference data. This file centralizes the
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Every error belongs to one of a small set of kinds (ErrValidation,
// ErrConflict, ErrNotFound, ErrForbidden, ErrUnauthenticated). Concrete
// sentinels unwrap to their kind, so handlers map kinds to HTTP results with
// errors.Is and keep the concrete message for the response body.
package services

import (
	"errors"
	"sort"
	"strings"
)

// Error kinds.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")
)

// Error is a service error with a human-readable message and a kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newErr(kind error, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Recipe errors.
var (
	ErrRecipeNotFound     = newErr(ErrNotFound, "recipe not found")
	ErrIngredientNotFound = newErr(ErrNotFound, "ingredient not found")
	ErrTagNotFound        = newErr(ErrNotFound, "tag not found")
	ErrRecipeExists       = newErr(ErrConflict, "a recipe with this name and text already exists")
	ErrNotRecipeAuthor    = newErr(ErrForbidden, "only the author can modify this recipe")
	ErrLoginRequired      = newErr(ErrUnauthenticated, "authentication credentials were not provided")
)

// Toggle errors.
var (
	ErrAlreadyFavorited = newErr(ErrConflict, "recipe is already in favorites")
	ErrNotFavorited     = newErr(ErrValidation, "recipe is not in favorites")
	ErrAlreadyInCart    = newErr(ErrConflict, "recipe is already in the shopping cart")
	ErrNotInCart        = newErr(ErrValidation, "recipe is not in the shopping cart")
)

// Subscription and user errors.
var (
	ErrUserNotFound        = newErr(ErrNotFound, "user not found")
	ErrSelfSubscription    = newErr(ErrValidation, "you cannot subscribe to yourself")
	ErrAlreadySubscribed   = newErr(ErrConflict, "you are already subscribed to this author")
	ErrNotSubscribed       = newErr(ErrValidation, "you are not subscribed to this author")
	ErrInvalidRecipesLimit = newErr(ErrValidation, "recipes_limit must be a non-negative integer")
)

// Reference data errors.
var (
	ErrTagExists = newErr(ErrConflict, "a tag with this name or slug already exists")
	ErrAdminOnly = newErr(ErrForbidden, "only administrators can perform this action")
	ErrBadFormat = newErr(ErrValidation, "format must be txt or pdf")
)

// ValidationError reports every invalid field of an input at once.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// fieldErrors accumulates per-field messages; the first message per field wins.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[string]string(f)}
}
