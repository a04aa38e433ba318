package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Product is one catalog row. Optional numerics are nil when the source
// value was absent or unparseable.
type Product struct {
	MainCategory  string
	Title         string
	AverageRating *float64
	RatingNumber  *int
	Features      []string
	Description   string
	Price         float64
	Store         string
	Categories    []string
	Details       map[string]string
	ParentASIN    string
}

// EmbeddingText renders the text that represents the product in the vector index.
func (p *Product) EmbeddingText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Price: %s\n", strconv.FormatFloat(p.Price, 'f', -1, 64))
	fmt.Fprintf(&b, "Store: %s\n", p.Store)
	fmt.Fprintf(&b, "Categories: %s\n", strings.Join(p.Categories, ", "))
	fmt.Fprintf(&b, "Details: %s\n", formatDetails(p.Details))
	fmt.Fprintf(&b, "Parent ASIN: %s", p.ParentASIN)
	return b.String()
}

// Metadata returns the filterable attributes stored alongside the vector.
// Absent optional numerics are left out.
func (p *Product) Metadata() map[string]any {
	m := map[string]any{
		"price":         p.Price,
		"store":         p.Store,
		"main_category": p.MainCategory,
	}
	if p.AverageRating != nil {
		m["average_rating"] = *p.AverageRating
	}
	if p.RatingNumber != nil {
		m["rating_number"] = float64(*p.RatingNumber)
	}
	return m
}

func formatDetails(d map[string]string) string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + d[k]
	}
	return strings.Join(parts, "; ")
}
