package recommend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Really-Cool/mcpapi/internal/testutil"
	pkgcatalog "github.com/Really-Cool/mcpapi/pkg/catalog"
	"github.com/Really-Cool/mcpapi/pkg/llm"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	calls    atomic.Int32
	chatFunc func(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error)
}

func (m *mockProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	m.calls.Add(1)
	if m.chatFunc != nil {
		return m.chatFunc(ctx, messages, opts...)
	}
	return &llm.Response{Content: `{"recommendations":[{"id":"github","title":"GitHub","description":"repos"}],"explanation":"GitHub fits."}`, Model: "mock", Done: true}, nil
}

func reply(content string) func(context.Context, []llm.Message, ...llm.CallOption) (*llm.Response, error) {
	return func(context.Context, []llm.Message, ...llm.CallOption) (*llm.Response, error) {
		return &llm.Response{Content: content, Model: "mock", Done: true}, nil
	}
}

func newTestEngine(t *testing.T, p llm.Provider, opts ...Option) (*Engine, *MemoryCache) {
	t.Helper()
	cache := NewMemoryCache(16, DefaultCacheTTL, testutil.NewClock().Now)
	return NewEngine(p, cache, pkgcatalog.NewCatalog(), testutil.Logger(t), opts...), cache
}

func candidates() []models.Listing {
	return []models.Listing{
		testutil.NewListing(testutil.WithID("1"), testutil.WithTitle("Postgres"), testutil.WithDescription("SQL database access")),
		testutil.NewListing(testutil.WithID("2"), testutil.WithTitle("Fetch"), testutil.WithDescription("web content")),
		testutil.NewListing(testutil.WithID("3"), testutil.WithTitle("Database Explorer"), testutil.WithDescription("browse schemas")),
		testutil.NewListing(testutil.WithID("4"), testutil.WithTitle("Mongo"), testutil.WithDescription("document database")),
	}
}

func TestRecommend_EmptyQueryOrCandidatesSkipsModel(t *testing.T) {
	p := &mockProvider{}
	e, _ := newTestEngine(t, p)

	got := e.Recommend(context.Background(), "   ", candidates())
	assert.Equal(t, models.SourceFallback, got.Source)
	assert.Len(t, got.Recommendations, models.MaxRecommendations)
	assert.Equal(t, "", got.Query)

	got = e.Recommend(context.Background(), "database", nil)
	assert.Equal(t, models.SourceFallback, got.Source)
	assert.Empty(t, got.Recommendations)
	assert.Contains(t, got.Explanation, "database")

	assert.Zero(t, p.calls.Load(), "no upstream call expected")
}

func TestRecommend_ModelPathResolvesAgainstCatalog(t *testing.T) {
	p := &mockProvider{chatFunc: reply(`{
		"recommendations": [
			{"id": "github", "title": "GH", "description": "short"},
			{"id": "not-in-catalog", "title": "Ghost", "description": "made up"},
			{"id": "ghost-2", "title": "Ghost 2", "description": "made up", "packageName": "@ghost/two"}
		],
		"explanation": "These fit."
	}`)}
	e, _ := newTestEngine(t, p)

	got := e.Recommend(context.Background(), "code hosting", candidates())
	require.Len(t, got.Recommendations, 3)
	assert.Equal(t, models.SourceLLM, got.Source)
	assert.Equal(t, "These fit.", got.Explanation)
	assert.Equal(t, "code hosting", got.Query)

	gh := got.Recommendations[0]
	assert.Equal(t, "github", gh.ID)
	assert.Equal(t, "Github", gh.Title, "catalog record replaces the model's copy")
	assert.Equal(t, "@mcthinking/github", gh.PackageName)

	stub := got.Recommendations[1]
	assert.Equal(t, models.Listing{ID: "not-in-catalog", Title: "Ghost", PackageName: "unknown package", Description: "made up"}, stub)
	assert.Equal(t, "@ghost/two", got.Recommendations[2].PackageName)
}

func TestRecommend_CallOptions(t *testing.T) {
	var got llm.CallOptions
	var msgs []llm.Message
	p := &mockProvider{}
	p.chatFunc = func(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
		got = llm.ApplyOptions(opts...)
		msgs = messages
		return reply(`{"recommendations":[{"id":"1","title":"P","description":"d"}]}`)(ctx, messages)
	}
	e, _ := newTestEngine(t, p, WithModel("deepseek-chat"))

	res := e.Recommend(context.Background(), "database", candidates())
	assert.Equal(t, models.SourceLLM, res.Source)
	assert.Contains(t, res.Explanation, "database", "templated explanation when the model gives none")

	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.6, *got.Temperature, 1e-9)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.True(t, got.JSONResponse)
	assert.Equal(t, "deepseek-chat", got.Model)

	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, `"database"`)
	assert.Contains(t, msgs[1].Content, `"id": "3"`, "candidates embedded as indented JSON")
}

func TestRecommend_CapsAtThree(t *testing.T) {
	p := &mockProvider{chatFunc: reply(`{"recommendations":[
		{"id":"1","title":"a","description":"d"},
		{"id":"2","title":"b","description":"d"},
		{"id":"3","title":"c","description":"d"},
		{"id":"4","title":"d","description":"d"}
	]}`)}
	e, _ := newTestEngine(t, p)

	got := e.Recommend(context.Background(), "anything", candidates())
	assert.Len(t, got.Recommendations, models.MaxRecommendations)
}

func TestRecommend_CachesModelResults(t *testing.T) {
	p := &mockProvider{}
	e, cache := newTestEngine(t, p)

	first := e.Recommend(context.Background(), "github", candidates())
	second := e.Recommend(context.Background(), "github", candidates())

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, models.SourceLLM, first.Source)
	assert.Equal(t, models.SourceCache, second.Source)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.Equal(t, 1, cache.Len())
}

func TestRecommend_FallbackPaths(t *testing.T) {
	tests := []struct {
		name string
		chat func(context.Context, []llm.Message, ...llm.CallOption) (*llm.Response, error)
	}{
		{"provider error", func(context.Context, []llm.Message, ...llm.CallOption) (*llm.Response, error) {
			return nil, llm.NewProviderError(llm.ErrCodeServerError, "boom", nil)
		}},
		{"plain error", func(context.Context, []llm.Message, ...llm.CallOption) (*llm.Response, error) {
			return nil, errors.New("connection reset")
		}},
		{"non json", reply("I recommend Postgres.")},
		{"missing array", reply(`{"explanation":"none"}`)},
		{"no valid entries", reply(`{"recommendations":[{"id":"1"}]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{chatFunc: tt.chat}
			e, cache := newTestEngine(t, p)

			got := e.Recommend(context.Background(), "database", candidates())
			assert.Equal(t, models.SourceFallback, got.Source)
			ids := []string{}
			for _, l := range got.Recommendations {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, []string{"1", "3", "4"}, ids)
			assert.Contains(t, got.Explanation, "database")

			assert.Zero(t, cache.Len(), "fallback results are not cached")
			_ = e.Recommend(context.Background(), "database", candidates())
			assert.Equal(t, int32(2), p.calls.Load(), "fallback retries upstream next time")
		})
	}
}

func TestRecommend_Timeout(t *testing.T) {
	p := &mockProvider{chatFunc: func(ctx context.Context, _ []llm.Message, _ ...llm.CallOption) (*llm.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e, _ := newTestEngine(t, p, WithTimeout(20*time.Millisecond))

	start := time.Now()
	got := e.Recommend(context.Background(), "database", candidates())
	assert.Equal(t, models.SourceFallback, got.Source)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRecommend_NilProviderFallsBack(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil)
	got := e.Recommend(context.Background(), "fetch", candidates())
	assert.Equal(t, models.SourceFallback, got.Source)
	require.Len(t, got.Recommendations, 1)
	assert.Equal(t, "2", got.Recommendations[0].ID)
}

func TestRecommend_CollapsesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	p := &mockProvider{}
	p.chatFunc = func(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
		entered <- struct{}{}
		<-release
		return reply(`{"recommendations":[{"id":"1","title":"P","description":"d"}]}`)(ctx, messages)
	}
	e, _ := newTestEngine(t, p)

	const callers = 5
	results := make([]models.Recommendation, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = e.Recommend(context.Background(), "database", candidates())
	}()
	<-entered
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Recommend(context.Background(), "database", candidates())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	for _, r := range results {
		require.Len(t, r.Recommendations, 1)
		assert.Equal(t, "1", r.Recommendations[0].ID)
	}
}

func TestRecommend_DifferentCandidatesAreNotShared(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	p := &mockProvider{chatFunc: func(context.Context, []llm.Message, ...llm.CallOption) (*llm.Response, error) {
		entered <- struct{}{}
		<-release
		return nil, llm.NewProviderError(llm.ErrCodeServerError, "boom", nil)
	}}
	e, _ := newTestEngine(t, p)

	setA := []models.Listing{testutil.NewListing(testutil.WithID("a1"), testutil.WithTitle("Alpha database"))}
	setB := []models.Listing{testutil.NewListing(testutil.WithID("b1"), testutil.WithTitle("Beta database"))}

	var gotA, gotB models.Recommendation
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); gotA = e.Recommend(context.Background(), "database", setA) }()
	go func() { defer wg.Done(); gotB = e.Recommend(context.Background(), "database", setB) }()
	for range 2 {
		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			close(release)
			t.Fatal("second candidate set did not reach the provider")
		}
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), p.calls.Load())
	require.Len(t, gotA.Recommendations, 1)
	require.Len(t, gotB.Recommendations, 1)
	assert.Equal(t, "a1", gotA.Recommendations[0].ID)
	assert.Equal(t, "b1", gotB.Recommendations[0].ID)
}

func TestRecommend_SharedCallSurvivesCallerCancel(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	p := &mockProvider{}
	p.chatFunc = func(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
		entered <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return reply(`{"recommendations":[{"id":"1","title":"P","description":"d"}]}`)(ctx, messages)
	}
	e, _ := newTestEngine(t, p)

	ctxA, cancelA := context.WithCancel(context.Background())
	var gotB models.Recommendation
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = e.Recommend(ctxA, "database", candidates()) }()
	<-entered
	go func() { defer wg.Done(); gotB = e.Recommend(context.Background(), "database", candidates()) }()
	time.Sleep(20 * time.Millisecond)
	cancelA()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, models.SourceLLM, gotB.Source)
}

func TestFlightKey(t *testing.T) {
	a := []models.Listing{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, flightKey("q", a), flightKey("q", []models.Listing{{ID: "a"}, {ID: "b"}}))
	assert.NotEqual(t, flightKey("q", a), flightKey("q", []models.Listing{{ID: "ab"}}))
	assert.NotEqual(t, flightKey("q", a), flightKey("r", a))
}

func TestRecommend_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := &mockProvider{}
	e, _ := newTestEngine(t, p, WithMetrics(m))

	_ = e.Recommend(context.Background(), "github", candidates())
	_ = e.Recommend(context.Background(), "github", candidates())
	_ = e.Recommend(context.Background(), "", candidates())

	assert.Equal(t, 1.0, promtest.ToFloat64(m.results.WithLabelValues("llm")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.results.WithLabelValues("cache")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.results.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.fallbacks.WithLabelValues(reasonEmptyQuery)))
	assert.Equal(t, 1, promtest.CollectAndCount(m.llmLatency))
}
