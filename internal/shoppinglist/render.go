package shoppinglist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Header is the first line of every rendered list.
const Header = "Shopping list"

// Format selects the document type.
type Format string

const (
	FormatText Format = "txt"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a query value to a Format. Empty input yields def.
func ParseFormat(s string, def Format) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "txt", "text":
		return FormatText, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Filename is the attachment name for the format.
func (f Format) Filename() string { return "shopping_list." + string(f) }

// ContentType is the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/plain; charset=utf-8"
}

// Line formats the i-th (1-based) entry.
func Line(i int, it Item) string {
	return fmt.Sprintf("%d. %s - %d, %s", i, it.Name, it.Amount, it.MeasurementUnit)
}

// PDFOptions tunes PDF rendering.
type PDFOptions struct {
	// FontPath is an optional UTF-8 TrueType font. Without it the core
	// Helvetica font is used and text is translated to cp1252.
	FontPath string
}

// pdfEpoch is stamped as creation and modification date so renders of the
// same list are byte-identical.
var pdfEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Render writes items in the given format.
func Render(w io.Writer, f Format, items []Item, opts PDFOptions) error {
	if f == FormatPDF {
		return RenderPDF(w, items, opts)
	}
	return RenderText(w, items)
}

// RenderText writes the header followed by one line per item, each
// terminated by a newline.
func RenderText(w io.Writer, items []Item) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, Header); err != nil {
		return err
	}
	for i, it := range items {
		if _, err := fmt.Fprintln(bw, Line(i+1, it)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// RenderPDF writes an A4 document with the header and one line per item.
func RenderPDF(w io.Writer, items []Item, opts PDFOptions) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetTitle(Header, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if opts.FontPath != "" {
		family = "listfont"
		pdf.AddUTF8Font(family, "", opts.FontPath)
		tr = func(s string) string { return s }
	}

	pdf.AddPage()
	pdf.SetFont(family, "", 18)
	pdf.CellFormat(0, 12, tr(Header), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(family, "", 12)
	for i, it := range items {
		pdf.CellFormat(0, 8, tr(Line(i+1, it)), "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
