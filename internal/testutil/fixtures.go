package testutil

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Really-Cool/mcpapi/pkg/models"
)

// NewListing returns a Listing with sensible defaults, suitable for test fixtures.
// Override individual fields after creation as needed.
func NewListing(opts ...func(*models.Listing)) models.Listing {
	active := true
	id := uuid.New().String()
	l := models.Listing{
		ID:          id,
		Title:       "Test Listing",
		PackageName: "@test/" + id[:8],
		Description: "A listing used in tests.",
		Downloads:   "1k",
		IsActive:    &active,
		Link:        "https://github.com/modelcontextprotocol/servers",
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// NewListings returns n listings with ids "item-1".."item-n" and titles
// "<prefix> 1".."<prefix> n".
func NewListings(n int, prefix string) []models.Listing {
	out := make([]models.Listing, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, NewListing(
			WithID(fmt.Sprintf("item-%d", i)),
			WithTitle(fmt.Sprintf("%s %d", prefix, i)),
		))
	}
	return out
}

// WithID sets the listing id.
func WithID(id string) func(*models.Listing) {
	return func(l *models.Listing) { l.ID = id }
}

// WithTitle sets the listing title.
func WithTitle(title string) func(*models.Listing) {
	return func(l *models.Listing) { l.Title = title }
}

// WithDescription sets the listing description.
func WithDescription(desc string) func(*models.Listing) {
	return func(l *models.Listing) { l.Description = desc }
}

// WithPackageName sets the listing package name.
func WithPackageName(name string) func(*models.Listing) {
	return func(l *models.Listing) { l.PackageName = name }
}

// WithInactive clears the active flag.
func WithInactive() func(*models.Listing) {
	return func(l *models.Listing) {
		inactive := false
		l.IsActive = &inactive
	}
}
