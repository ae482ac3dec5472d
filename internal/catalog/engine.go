// Package catalog provides the query engine and HTTP handlers that filter and
// paginate the embedded MCP listing catalog.
package catalog

import (
	"strings"

	pkgcatalog "github.com/Really-Cool/mcpapi/pkg/catalog"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// Pagination defaults applied when the caller omits or zeroes a value.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// FallbackToCatalog names the "never show nothing" policy: a query that matches
// no listing yields the whole catalog instead of an empty result.
const FallbackToCatalog = true

// FilterResult is the outcome of Filter.
type FilterResult struct {
	Items []models.Listing
	// Matched is false when the query was non-empty and nothing matched, in
	// which case Items holds the full catalog.
	Matched bool
}

// Filter returns the listings whose title, description or package name
// contains query, case-insensitively, in catalog order. An empty or
// whitespace-only query returns the catalog unchanged.
func Filter(listings []models.Listing, query string) FilterResult {
	q := NormalizeQuery(query)
	if q == "" {
		return FilterResult{Items: listings, Matched: true}
	}

	matches := make([]models.Listing, 0, len(listings))
	for i := range listings {
		if Matches(listings[i], q) {
			matches = append(matches, listings[i])
		}
	}

	if len(matches) == 0 && FallbackToCatalog {
		return FilterResult{Items: listings, Matched: false}
	}
	return FilterResult{Items: matches, Matched: true}
}

// Matches reports whether l contains the already-normalized query q in its
// title, description or package name.
func Matches(l models.Listing, q string) bool {
	return strings.Contains(strings.ToLower(l.Title), q) ||
		strings.Contains(strings.ToLower(l.Description), q) ||
		strings.Contains(strings.ToLower(l.PackageName), q)
}

// NormalizeQuery trims and case-folds a free-text query.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Paginate slices items into the 1-based page of the given size. An
// out-of-range page yields no items; Total always reflects len(items).
func Paginate(items []models.Listing, page, pageSize int) models.SearchPage {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	total := len(items)
	// Compare before multiplying so huge pages cannot overflow.
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	start, end := total, total
	if page-1 < pages {
		start = (page - 1) * pageSize
		end = min(start+pageSize, total)
	}

	pageItems := make([]models.Listing, end-start)
	copy(pageItems, items[start:end])

	return models.SearchPage{
		Items:    pageItems,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
}

// Engine answers catalog queries.
type Engine struct {
	cat *pkgcatalog.Catalog
}

// NewEngine creates a new query engine backed by the given catalog.
func NewEngine(cat *pkgcatalog.Catalog) *Engine {
	return &Engine{cat: cat}
}

// Search filters the catalog by query and returns the requested page.
func (e *Engine) Search(query string, page, pageSize int) (models.SearchPage, error) {
	entries, err := e.cat.Entries()
	if err != nil {
		return models.SearchPage{}, err
	}

	filtered := Filter(entries, query)
	result := Paginate(filtered.Items, page, pageSize)
	result.Query = strings.TrimSpace(query)
	result.Matched = filtered.Matched
	return result, nil
}

// Get returns a single listing by id.
func (e *Engine) Get(id string) (models.Listing, error) {
	return e.cat.ByID(id)
}

// Sections returns the catalog grouped by section.
func (e *Engine) Sections() ([]models.Section, error) {
	return e.cat.Sections()
}

// Entries returns the full catalog.
func (e *Engine) Entries() ([]models.Listing, error) {
	return e.cat.Entries()
}
