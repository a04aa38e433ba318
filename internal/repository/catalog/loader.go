package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	domcat "github.com/kailas-cloud/shopsearch/internal/domain/catalog"
)

// Stats summarizes a catalog load.
type Stats struct {
	Loaded  int
	Skipped int
}

// Loader reads product catalogs from CSV exports with a header row.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a CSV catalog loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadFile opens path and loads it.
func (l *Loader) LoadFile(path string) (*domcat.Catalog, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load parses every row into a Product. Rows that cannot be parsed are
// skipped and counted; only an unreadable header fails the load.
func (l *Loader) Load(r io.Reader) (*domcat.Catalog, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var stats Stats
	var products []domcat.Product
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, stats, fmt.Errorf("read row %d: %w", line, err)
			}
			stats.Skipped++
			l.logger.Warn("Skipping malformed catalog row", zap.Int("line", line), zap.Error(err))
			continue
		}
		if len(rec) != len(header) {
			stats.Skipped++
			l.logger.Warn("Skipping catalog row with wrong column count",
				zap.Int("line", line), zap.Int("columns", len(rec)), zap.Int("want", len(header)))
			continue
		}

		products = append(products, parseRow(row{cols: cols, rec: rec}))
	}

	stats.Loaded = len(products)
	return domcat.New(products), stats, nil
}

type row struct {
	cols map[string]int
	rec  []string
}

func (r row) get(name string) string {
	if i, ok := r.cols[name]; ok {
		return r.rec[i]
	}
	return ""
}

// parseRow never fails: unparseable optional values become absent and a
// missing price becomes 0.
func parseRow(r row) domcat.Product {
	features, _ := parseList(r.get("features"))
	categories, _ := parseList(r.get("categories"))
	details, err := parseDict(r.get("details"))
	if err != nil {
		details = map[string]string{}
	}

	p := domcat.Product{
		MainCategory:  r.get("main_category"),
		Title:         r.get("title"),
		AverageRating: optFloat(r.get("average_rating")),
		RatingNumber:  optInt(r.get("rating_number")),
		Features:      features,
		Description:   r.get("description"),
		Store:         r.get("store"),
		Categories:    categories,
		Details:       details,
		ParentASIN:    r.get("parent_asin"),
	}
	if price := optFloat(r.get("price")); price != nil {
		p.Price = *price
	}
	return p
}

func optFloat(s string) *float64 {
	if isNone(s) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func optInt(s string) *int {
	if isNone(s) {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
