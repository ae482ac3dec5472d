package searchclient

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/pkg/models"
)

// DefaultPageSize matches the server's default page size.
const DefaultPageSize = 10

// Status is the phase of a search.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is a snapshot of the orchestrator. Results, Recommendations,
// Explanation, HasMore and Total are meaningful only in StatusSuccess; Err
// only in StatusError.
type State struct {
	Status          Status
	Results         []models.Listing
	Recommendations []models.Listing
	Explanation     string
	HasMore         bool
	Total           int
	Err             error
}

func (s State) clone() State {
	out := s
	out.Results = append([]models.Listing(nil), s.Results...)
	out.Recommendations = append([]models.Listing(nil), s.Recommendations...)
	return out
}

// API is the subset of Client the orchestrator uses.
type API interface {
	Search(ctx context.Context, query string, page, pageSize int) (models.SearchPage, error)
	Recommend(ctx context.Context, query string, items []models.Listing) (models.Recommendation, error)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPageSize sets the page size used for every request.
func WithPageSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithOnChange registers fn to receive every committed state. fn runs on the
// goroutine that committed the change, without the orchestrator's lock held.
func WithOnChange(fn func(State)) OrchestratorOption {
	return func(o *Orchestrator) { o.onChange = fn }
}

// Orchestrator drives a search through idle, loading, success and error,
// and appends further pages on LoadMore. Every Search and Reset starts a new
// generation; responses from an older generation are discarded.
type Orchestrator struct {
	api      API
	logger   *zap.Logger
	pageSize int
	onChange func(State)

	mu          sync.Mutex
	state       State
	query       string
	page        int
	gen         uint64
	loadingMore bool
}

// NewOrchestrator creates an idle Orchestrator.
func NewOrchestrator(api API, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		api:      api,
		logger:   logger,
		pageSize: DefaultPageSize,
		state:    State{Status: StatusIdle},
		page:     1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Query returns the query of the current search, or "" when idle.
func (o *Orchestrator) Query() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.query
}

// PageSize returns the configured page size.
func (o *Orchestrator) PageSize() int {
	return o.pageSize
}

// Search runs a new search for query. A blank query resets instead. The
// returned error is the one stored in the error state; nil is returned when
// the search succeeded or was superseded by a newer Search or Reset.
func (o *Orchestrator) Search(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		o.Reset()
		return nil
	}

	o.mu.Lock()
	o.gen++
	gen := o.gen
	o.query = query
	o.page = 1
	o.loadingMore = false
	o.state = State{Status: StatusLoading}
	snapshot := o.state.clone()
	o.mu.Unlock()
	o.notify(snapshot)

	next, err := o.fetchFirstPage(ctx, query)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			err = &APIError{Op: "search", Err: err}
		}
		next = State{Status: StatusError, Err: err}
	}

	if !o.commit(gen, next) {
		o.logger.Debug("discarding stale search result", zap.String("query", query))
		return nil
	}
	if err != nil {
		o.logger.Error("search failed", zap.String("query", query), zap.Error(err))
	}
	return err
}

func (o *Orchestrator) fetchFirstPage(ctx context.Context, query string) (State, error) {
	page, err := o.api.Search(ctx, query, 1, o.pageSize)
	if err != nil {
		return State{}, err
	}
	rec, err := o.api.Recommend(ctx, query, page.Items)
	if err != nil {
		return State{}, err
	}
	return State{
		Status:          StatusSuccess,
		Results:         page.Items,
		Recommendations: rec.Recommendations,
		Explanation:     rec.Explanation,
		HasMore:         page.Total > len(page.Items),
		Total:           page.Total,
	}, nil
}

// commit installs next if gen is still current.
func (o *Orchestrator) commit(gen uint64, next State) bool {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return false
	}
	o.state = next
	snapshot := o.state.clone()
	o.mu.Unlock()
	o.notify(snapshot)
	return true
}

// LoadMore fetches the next page and appends it to the results. It is a
// no-op unless the state is success with more results available and no
// other LoadMore is running. On failure the state is left unchanged and
// the error is returned.
func (o *Orchestrator) LoadMore(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Status != StatusSuccess || !o.state.HasMore || o.loadingMore {
		o.mu.Unlock()
		return nil
	}
	o.loadingMore = true
	gen := o.gen
	query := o.query
	nextPage := o.page + 1
	o.mu.Unlock()

	page, err := o.api.Search(ctx, query, nextPage, o.pageSize)

	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		o.logger.Debug("discarding stale page", zap.Int("page", nextPage))
		return nil
	}
	o.loadingMore = false
	if err != nil {
		o.mu.Unlock()
		o.logger.Warn("failed to load more results", zap.String("query", query), zap.Int("page", nextPage), zap.Error(err))
		return err
	}

	o.page = nextPage
	o.state.Results = append(o.state.clone().Results, page.Items...)
	o.state.Total = page.Total
	o.state.HasMore = nextPage*o.pageSize < page.Total
	snapshot := o.state.clone()
	o.mu.Unlock()
	o.notify(snapshot)
	return nil
}

// Reset clears the query and returns to idle. In-flight operations are
// discarded when they complete.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.gen++
	o.query = ""
	o.page = 1
	o.loadingMore = false
	o.state = State{Status: StatusIdle}
	snapshot := o.state.clone()
	o.mu.Unlock()
	o.notify(snapshot)
}

func (o *Orchestrator) notify(s State) {
	if o.onChange != nil {
		o.onChange(s)
	}
}
