// Package searchclient is a Go client for the MCP API with a search
// orchestrator that tracks results across incremental page loads.
package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Really-Cool/mcpapi/internal/version"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// DefaultTimeout bounds each request made by a Client created without an
// explicit *http.Client. It exceeds the server's recommendation timeout.
const DefaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is read into a message.
const maxErrorBody = 4 << 10

// APIError reports a failed API request. Status is zero for transport
// failures, in which case Err holds the cause. Message is the server's
// explanation taken from the problem body, when it sent one.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status != 0 && e.Message != "" {
		return fmt.Sprintf("%s request failed with status %d: %s", e.Op, e.Status, e.Message)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed with status %d", e.Op, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
	}
	return e.Op + " request failed"
}

func (e *APIError) Unwrap() error { return e.Err }

// Client calls the query and recommend endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Search fetches one page of listings matching query.
func (c *Client) Search(ctx context.Context, query string, page, pageSize int) (models.SearchPage, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/mcp?"+params.Encode(), nil)
	if err != nil {
		return models.SearchPage{}, &APIError{Op: "search", Err: err}
	}

	var out models.SearchPage
	if err := c.do(req, "search", &out); err != nil {
		return models.SearchPage{}, err
	}
	return out, nil
}

// Recommend asks the server to pick listings from items for query.
func (c *Client) Recommend(ctx context.Context, query string, items []models.Listing) (models.Recommendation, error) {
	if items == nil {
		items = []models.Listing{}
	}
	body, err := json.Marshal(struct {
		Query string           `json:"query"`
		Items []models.Listing `json:"items"`
	}{Query: query, Items: items})
	if err != nil {
		return models.Recommendation{}, &APIError{Op: "recommendation", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/recommend", bytes.NewReader(body))
	if err != nil {
		return models.Recommendation{}, &APIError{Op: "recommendation", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out models.Recommendation
	if err := c.do(req, "recommendation", &out); err != nil {
		return models.Recommendation{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Op: op, Status: resp.StatusCode, Message: readProblemMessage(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readProblemMessage extracts error or detail from a problem body, falling
// back to the raw (truncated) body text.
func readProblemMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var p struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &p) == nil {
		if p.Error != "" {
			return p.Error
		}
		if p.Detail != "" {
			return p.Detail
		}
	}
	return strings.TrimSpace(string(raw))
}
