package catalog

import (
	"math"
	"testing"

	"github.com/Really-Cool/mcpapi/internal/testutil"
	pkgcatalog "github.com/Really-Cool/mcpapi/pkg/catalog"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

func testListings() []models.Listing {
	return []models.Listing{
		testutil.NewListing(testutil.WithID("a"), testutil.WithTitle("Github"), testutil.WithDescription("repos and issues"), testutil.WithPackageName("@mc/github")),
		testutil.NewListing(testutil.WithID("b"), testutil.WithTitle("Database Explorer"), testutil.WithDescription("run SQL queries"), testutil.WithPackageName("@mc/db-tool")),
		testutil.NewListing(testutil.WithID("c"), testutil.WithTitle("Fetch"), testutil.WithDescription("web requests"), testutil.WithPackageName("@mc/fetch")),
		testutil.NewListing(testutil.WithID("d"), testutil.WithTitle("Notion"), testutil.WithDescription("Notion DATABASE sync"), testutil.WithPackageName("notion-api")),
	}
}

func ids(items []models.Listing) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilter(t *testing.T) {
	listings := testListings()

	tests := []struct {
		name        string
		query       string
		wantIDs     []string
		wantMatched bool
	}{
		{name: "empty query returns catalog", query: "", wantIDs: []string{"a", "b", "c", "d"}, wantMatched: true},
		{name: "whitespace query returns catalog", query: "   \t", wantIDs: []string{"a", "b", "c", "d"}, wantMatched: true},
		{name: "title match", query: "github", wantIDs: []string{"a"}, wantMatched: true},
		{name: "case insensitive description match keeps order", query: "Database", wantIDs: []string{"b", "d"}, wantMatched: true},
		{name: "package name match", query: "db-tool", wantIDs: []string{"b"}, wantMatched: true},
		{name: "surrounding whitespace is trimmed", query: "  fetch ", wantIDs: []string{"c"}, wantMatched: true},
		{name: "no match falls back to catalog", query: "kubernetes", wantIDs: []string{"a", "b", "c", "d"}, wantMatched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(listings, tt.query)
			if !equalIDs(ids(got.Items), tt.wantIDs) {
				t.Errorf("Filter(%q) = %v, want %v", tt.query, ids(got.Items), tt.wantIDs)
			}
			if got.Matched != tt.wantMatched {
				t.Errorf("Filter(%q).Matched = %v, want %v", tt.query, got.Matched, tt.wantMatched)
			}
		})
	}
}

func TestFilter_NoMatchNeverEmpty(t *testing.T) {
	for n := 1; n <= 5; n++ {
		listings := testutil.NewListings(n, "Server")
		got := Filter(listings, "zzz-no-such-thing")
		if len(got.Items) != n {
			t.Errorf("n=%d: len(items) = %d, want full catalog", n, len(got.Items))
		}
	}
}

func TestPaginate_Lengths(t *testing.T) {
	items := testutil.NewListings(7, "Item")

	for pageSize := 1; pageSize <= 8; pageSize++ {
		for page := 1; page <= 9; page++ {
			got := Paginate(items, page, pageSize)

			want := len(items) - (page-1)*pageSize
			if want < 0 {
				want = 0
			}
			if want > pageSize {
				want = pageSize
			}
			if len(got.Items) != want {
				t.Errorf("Paginate(7, page=%d, size=%d) len = %d, want %d", page, pageSize, len(got.Items), want)
			}
			if got.Total != len(items) {
				t.Errorf("Total = %d, want %d", got.Total, len(items))
			}
			if len(got.Items) > 0 && got.Items[0].ID != items[(page-1)*pageSize].ID {
				t.Errorf("page %d size %d starts at %s, want %s", page, pageSize, got.Items[0].ID, items[(page-1)*pageSize].ID)
			}
		}
	}
}

func TestPaginate_OutOfRangeIsEmptyNotError(t *testing.T) {
	got := Paginate(testutil.NewListings(3, "Item"), 10, 10)
	if len(got.Items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(got.Items))
	}
	if got.Items == nil {
		t.Error("items should be an empty slice, not nil")
	}
	if got.Total != 3 || got.Page != 10 || got.PageSize != 10 {
		t.Errorf("unexpected page metadata: %+v", got)
	}
}

func TestPaginate_HugePageDoesNotOverflow(t *testing.T) {
	items := testutil.NewListings(5, "Item")
	tests := []struct {
		page, pageSize int
	}{
		{1e17, 100},
		{math.MaxInt, 1},
		{math.MaxInt, math.MaxInt},
		{2, math.MaxInt},
	}
	for _, tt := range tests {
		got := Paginate(items, tt.page, tt.pageSize)
		if len(got.Items) != 0 || got.Items == nil {
			t.Errorf("Paginate(page=%d, size=%d) items = %v, want empty slice", tt.page, tt.pageSize, got.Items)
		}
		if got.Total != 5 {
			t.Errorf("Paginate(page=%d, size=%d) total = %d, want 5", tt.page, tt.pageSize, got.Total)
		}
	}

	if got := Paginate(items, 1, math.MaxInt); len(got.Items) != 5 {
		t.Errorf("first page with huge size has %d items, want 5", len(got.Items))
	}
}

func TestPaginate_NormalizesNonPositive(t *testing.T) {
	got := Paginate(testutil.NewListings(15, "Item"), 0, -1)
	if got.Page != DefaultPage || got.PageSize != DefaultPageSize {
		t.Errorf("page/pageSize = %d/%d, want %d/%d", got.Page, got.PageSize, DefaultPage, DefaultPageSize)
	}
	if len(got.Items) != DefaultPageSize {
		t.Errorf("len(items) = %d, want %d", len(got.Items), DefaultPageSize)
	}
}

func TestEngine_Search(t *testing.T) {
	engine := NewEngine(pkgcatalog.NewCatalog())

	page, err := engine.Search("google", 1, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !page.Matched {
		t.Error("expected google to match")
	}
	if len(page.Items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(page.Items))
	}
	if page.Total < 4 {
		t.Errorf("total = %d, want at least 4 google listings", page.Total)
	}
	if page.Query != "google" {
		t.Errorf("query = %q, want google", page.Query)
	}
}

func TestEngine_Search_NoMatchReturnsCatalogTotal(t *testing.T) {
	cat := pkgcatalog.NewCatalog()
	engine := NewEngine(cat)

	page, err := engine.Search("no-listing-has-this", 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Total != cat.Len() {
		t.Errorf("total = %d, want catalog length %d", page.Total, cat.Len())
	}
	if page.Matched {
		t.Error("expected matched=false")
	}
}

func TestEngine_SearchLoadError(t *testing.T) {
	engine := NewEngine(pkgcatalog.NewCatalogFromYAML([]byte("sections: [:")))
	if _, err := engine.Search("x", 1, 10); err == nil {
		t.Fatal("expected error from broken catalog")
	}
}
