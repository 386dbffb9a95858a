// Package services – ShoppingListService
//
// This file implements ShoppingListService, which collects the ingredient
// lines of every recipe in the principal's cart, sums them per ingredient and
// renders the result as a downloadable text or PDF document.
package services

import (
	"bytes"
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/observability"
	"github.com/tbourn/go-recipes-backend/internal/repo"
	"github.com/tbourn/go-recipes-backend/internal/shoppinglist"
)

// Document is a rendered shopping list ready to be sent as an attachment.
type Document struct {
	Format      shoppinglist.Format
	Filename    string
	ContentType string
	Body        []byte
}

// ShoppingListService builds shopping lists from carts.
type ShoppingListService struct {
	DB            *gorm.DB
	DefaultFormat shoppinglist.Format
	PDF           shoppinglist.PDFOptions
}

// NewShoppingListService returns a service rendering def when no format is
// requested.
func NewShoppingListService(db *gorm.DB, def shoppinglist.Format, pdf shoppinglist.PDFOptions) *ShoppingListService {
	if def == "" {
		def = shoppinglist.FormatPDF
	}
	return &ShoppingListService{DB: db, DefaultFormat: def, PDF: pdf}
}

// Items returns the aggregated list for the principal's cart.
func (s *ShoppingListService) Items(ctx context.Context, p domain.Principal) ([]shoppinglist.Item, error) {
	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}
	rows, err := repo.CartRows(ctx, s.DB, p.UserID)
	if err != nil {
		return nil, err
	}
	return shoppinglist.Aggregate(rows), nil
}

// Download renders the principal's shopping list in the requested format
// ("txt", "pdf" or empty for the default).
func (s *ShoppingListService) Download(ctx context.Context, p domain.Principal, format string) (*Document, error) {
	ctx, span := observability.Tracer("services/ShoppingListService").Start(ctx, "Download",
		trace.WithAttributes(attribute.Int64("user.id", p.UserID), attribute.String("format", format)),
	)
	defer span.End()

	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}
	f, err := shoppinglist.ParseFormat(format, s.DefaultFormat)
	if err != nil {
		return nil, ErrBadFormat
	}

	items, err := s.Items(ctx, p)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("items", len(items)))

	var buf bytes.Buffer
	if err := shoppinglist.Render(&buf, f, items, s.PDF); err != nil {
		return nil, err
	}
	return &Document{Format: f, Filename: f.Filename(), ContentType: f.ContentType(), Body: buf.Bytes()}, nil
}
