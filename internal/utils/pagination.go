// Package utils holds small helpers shared by the handlers and services.
package utils

import (
	"math"
	"strconv"
	"strings"
)

// Paging defaults shared by every paginated endpoint.
const (
	DefaultPageSize = 6
	MaxPageSize     = 100
	// MaxPageNumber keeps (Number-1)*Size within int for any valid size.
	MaxPageNumber = math.MaxInt / MaxPageSize
)

// Page is a 1-based page number and a page size, always within bounds once
// built by NewPage or ParsePage.
type Page struct {
	Number int
	Size   int
}

// NewPage bounds already-parsed values: 1 <= Number <= MaxPageNumber and
// 1 <= Size <= MaxPageSize. A non-positive size selects DefaultPageSize.
func NewPage(number, size int) Page {
	number = min(max(number, 1), MaxPageNumber)
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// ParsePage reads raw query values. Missing or malformed values fall back to
// page 1 and DefaultPageSize; an explicit size below 1 becomes 1.
func ParsePage(rawNumber, rawSize string) Page {
	size := atoi(rawSize, DefaultPageSize)
	if size < 1 {
		size = 1
	}
	return NewPage(atoi(rawNumber, 1), size)
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TotalPages returns the number of pages needed for total rows.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
