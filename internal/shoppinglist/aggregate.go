// Package shoppinglist turns the ingredient lines of a user's shopping cart
// into a summed, alphabetically ordered shopping list and renders it as a
// plain-text or PDF document.
//
// The package is pure: it performs no I/O besides writing to the supplied
// io.Writer, so identical input always yields byte-identical output.
package shoppinglist

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Row is one ingredient line of one recipe in the cart.
type Row struct {
	Name            string
	MeasurementUnit string
	Amount          int64
}

// Item is one aggregated shopping list entry.
type Item struct {
	Name            string
	MeasurementUnit string
	Amount          int64
}

// Aggregate sums rows by ingredient name. The first row seen for a name
// fixes its measurement unit; later rows add to the amount. The result is
// ordered by name using locale-aware collation, with byte order breaking
// ties so the order is total.
func Aggregate(rows []Row) []Item {
	index := make(map[string]int, len(rows))
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.Name]; ok {
			items[i].Amount += r.Amount
			continue
		}
		index[r.Name] = len(items)
		items = append(items, Item{Name: r.Name, MeasurementUnit: r.MeasurementUnit, Amount: r.Amount})
	}

	col := collate.New(language.Und)
	sort.SliceStable(items, func(i, j int) bool {
		if c := col.CompareString(items[i].Name, items[j].Name); c != 0 {
			return c < 0
		}
		return items[i].Name < items[j].Name
	})
	return items
}
