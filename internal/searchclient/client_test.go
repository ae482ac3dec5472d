package searchclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/internal/catalog"
	"github.com/Really-Cool/mcpapi/internal/recommend"
	pkgcatalog "github.com/Really-Cool/mcpapi/pkg/catalog"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// testCatalogYAML has four listings matching "test" among six.
const testCatalogYAML = `
sections:
  - id: s1
    title: One
    count: 6
    items:
      - id: t1
        title: Test One
        package_name: "@t/one"
        description: first
      - id: other1
        title: Other
        package_name: "@o/one"
        description: unrelated
      - id: t2
        title: Two
        package_name: "@t/two"
        description: a test helper
      - id: t3
        title: Three
        package_name: "@test/three"
        description: third
      - id: other2
        title: Another
        package_name: "@o/two"
        description: unrelated
      - id: t4
        title: Testing Four
        package_name: "@t/four"
        description: fourth
`

// newAPIServer serves the real catalog and recommendation handlers.
func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat := pkgcatalog.NewCatalogFromYAML([]byte(testCatalogYAML))
	mux := http.NewServeMux()
	catalog.NewHandler(catalog.NewEngine(cat), zap.NewNop()).RegisterRoutes(mux)
	recommend.NewHandler(recommend.NewEngine(nil, nil, cat, zap.NewNop()), nil, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Search(t *testing.T) {
	c := NewClient(newAPIServer(t).URL+"/", nil)

	page, err := c.Search(context.Background(), "test", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, "test", page.Query)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "t1", page.Items[0].ID)
	assert.Equal(t, "t2", page.Items[1].ID)

	all, err := c.Search(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, all.Total)
}

func TestClient_Recommend(t *testing.T) {
	c := NewClient(newAPIServer(t).URL, nil)
	items := []models.Listing{{ID: "t1", Title: "Test One", Description: "first"}}

	rec, err := c.Recommend(context.Background(), "test", items)
	require.NoError(t, err)
	assert.Equal(t, "test", rec.Query)
	require.Len(t, rec.Recommendations, 1)
	assert.Equal(t, "t1", rec.Recommendations[0].ID)

	rec, err = c.Recommend(context.Background(), "test", nil)
	require.NoError(t, err, "nil items are sent as an empty array")
	assert.Empty(t, rec.Recommendations)
}

func TestClient_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil)

	_, err := c.Search(context.Background(), "x", 1, 10)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "search request failed with status 429", apiErr.Error())

	_, err = c.Recommend(context.Background(), "x", nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "recommendation", apiErr.Op)
}

func TestClient_StatusErrorCarriesServerMessage(t *testing.T) {
	srv := newAPIServer(t)
	c := NewClient(srv.URL, nil)

	_, err := c.Recommend(context.Background(), "", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "query is required", apiErr.Message)
	assert.Equal(t, "recommendation request failed with status 400: query is required", apiErr.Error())
}

func TestReadProblemMessage(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"error member", `{"detail":"d","error":"query is required"}`, "query is required"},
		{"detail only", `{"detail":"page must be an integer"}`, "page must be an integer"},
		{"plain text", "  upstream unavailable\n", "upstream unavailable"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readProblemMessage(strings.NewReader(tt.body)))
		})
	}

	long := strings.Repeat("x", 2*maxErrorBody)
	assert.Len(t, readProblemMessage(strings.NewReader(long)), maxErrorBody)
}

func TestClient_TransportAndDecodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	c := NewClient(srv.URL, nil)

	_, err := c.Search(context.Background(), "x", 1, 10)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))

	srv.Close()
	_, err = c.Search(context.Background(), "x", 1, 10)
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.NotNil(t, apiErr.Unwrap())
}
