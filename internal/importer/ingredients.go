// Package importer loads reference data into the database from CSV files.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/repo"
)

// LineError reports a malformed CSV row.
type LineError struct {
	Line int
	Msg  string
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

// Result summarizes an import run.
type Result struct {
	Read     int   // non-blank rows parsed
	Inserted int64 // rows actually stored (duplicates are skipped)
}

// ParseIngredients reads `name,measurement_unit` rows. Blank rows are
// skipped; any other row must have exactly two non-empty columns.
func ParseIngredients(r io.Reader) ([]domain.Ingredient, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []domain.Ingredient
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &LineError{Line: pe.StartLine, Msg: pe.Err.Error()}
			}
			return nil, err
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != 2 {
			return nil, &LineError{Line: line, Msg: fmt.Sprintf("expected 2 columns, got %d", len(rec))}
		}
		name, unit := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if name == "" || unit == "" {
			return nil, &LineError{Line: line, Msg: "name and measurement unit are required"}
		}
		out = append(out, domain.Ingredient{Name: name, MeasurementUnit: unit})
	}
}

// ImportIngredients parses r and inserts the rows in batches. Rows that
// already exist are left untouched, so re-running an import is safe.
func ImportIngredients(ctx context.Context, db *gorm.DB, r io.Reader) (Result, error) {
	items, err := ParseIngredients(r)
	if err != nil {
		return Result{}, err
	}
	n, err := repo.InsertIngredients(ctx, db, items, 500)
	if err != nil {
		return Result{Read: len(items)}, fmt.Errorf("insert ingredients: %w", err)
	}
	zerolog.Ctx(ctx).Info().
		Int("read", len(items)).
		Int64("inserted", n).
		Msg("ingredients imported")
	return Result{Read: len(items), Inserted: n}, nil
}

// ImportIngredientsFile is ImportIngredients over a file path.
func ImportIngredientsFile(ctx context.Context, db *gorm.DB, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return ImportIngredients(ctx, db, f)
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
