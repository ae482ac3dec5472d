// Package recommend re-ranks candidate listings for a query with a language
// model, caching successful answers and falling back to keyword matching
// whenever the model cannot produce a usable reply.
package recommend

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/Really-Cool/mcpapi/pkg/llm"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// Engine defaults.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultTemperature = 0.6
	DefaultMaxTokens   = 1000
)

// unknownPackage is the package name reported for recommended ids that are
// not in the catalog and carry no package name of their own.
const unknownPackage = "unknown package"

// Resolver looks up full listings by id.
type Resolver interface {
	ByID(id string) (models.Listing, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each upstream model call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMetrics records outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = strings.TrimSpace(model) }
}

// WithSampling sets temperature and max tokens for model calls.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(e *Engine) {
		e.temperature = temperature
		if maxTokens > 0 {
			e.maxTokens = maxTokens
		}
	}
}

// Engine produces recommendations. Recommend never fails: every error path
// degrades to Fallback.
type Engine struct {
	provider    llm.Provider
	cache       Cache
	resolver    Resolver
	metrics     *Metrics
	logger      *zap.Logger
	model       string
	timeout     time.Duration
	temperature float64
	maxTokens   int
	group       singleflight.Group
}

// NewEngine creates an Engine. A nil provider disables the model path, a nil
// cache disables caching and a nil resolver reports model picks as returned.
func NewEngine(provider llm.Provider, cache Cache, resolver Resolver, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		provider:    provider,
		cache:       cache,
		resolver:    resolver,
		logger:      logger,
		timeout:     DefaultTimeout,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend returns up to models.MaxRecommendations listings for query,
// chosen from candidates.
func (e *Engine) Recommend(ctx context.Context, query string, candidates []models.Listing) models.Recommendation {
	if strings.TrimSpace(query) == "" {
		return e.fallback("", candidates, reasonEmptyQuery)
	}
	if len(candidates) == 0 {
		return e.fallback(query, nil, reasonNoCandidates)
	}

	if e.cache != nil {
		cached, ok := e.cache.Get(query)
		e.metrics.observeCache(ok)
		if ok {
			e.logger.Debug("recommendation cache hit", zap.String("query", query))
			cached.Source = models.SourceCache
			e.metrics.observeResult(models.SourceCache)
			return cached
		}
	}

	if e.provider == nil {
		return e.fallback(query, candidates, reasonNotConfigured)
	}

	// Concurrent misses for the same query and candidates share one
	// upstream call. Each caller falls back over its own candidates.
	v, _, _ := e.group.Do(flightKey(query, candidates), func() (any, error) {
		return e.callModel(context.WithoutCancel(ctx), query, candidates), nil
	})
	res := v.(modelOutcome)
	if res.reason != "" {
		return e.fallback(query, candidates, res.reason)
	}
	result := cloneResult(res.result)
	e.metrics.observeResult(result.Source)
	return result
}

// modelOutcome is a model result, or the fallback reason when the model
// path failed.
type modelOutcome struct {
	result models.Recommendation
	reason string
}

// flightKey identifies a model call by query and candidate ids.
func flightKey(query string, candidates []models.Listing) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(query))
	for _, c := range candidates {
		h.Write([]byte{0})
		h.Write([]byte(c.ID))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// callModel runs the model path. The call is bounded by the engine timeout
// only, so one caller leaving does not fail the others sharing it.
func (e *Engine) callModel(ctx context.Context, query string, candidates []models.Listing) modelOutcome {
	messages, err := buildMessages(query, candidates)
	if err != nil {
		e.logger.Warn("failed to render recommendation prompt", zap.Error(err))
		return modelOutcome{reason: reasonPromptRendering}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := []llm.CallOption{
		llm.WithTemperature(e.temperature),
		llm.WithMaxTokens(e.maxTokens),
		llm.WithJSONResponse(),
	}
	if e.model != "" {
		opts = append(opts, llm.WithModel(e.model))
	}

	start := time.Now()
	resp, err := e.provider.Chat(ctx, messages, opts...)
	e.metrics.observeLatency(time.Since(start))
	if err != nil {
		e.logger.Warn("llm call failed, using keyword fallback",
			zap.String("query", query),
			zap.String("code", string(llm.Code(err))),
			zap.Error(err),
		)
		return modelOutcome{reason: reasonProviderError}
	}

	items, explanation, err := parseReply(resp.Content)
	if err != nil {
		e.logger.Warn("unusable llm reply, using keyword fallback",
			zap.String("query", query),
			zap.Error(err),
		)
		return modelOutcome{reason: reasonInvalidReply}
	}

	if len(items) > models.MaxRecommendations {
		items = items[:models.MaxRecommendations]
	}
	if explanation == "" {
		explanation = fmt.Sprintf("Based on your query %q, here are the recommended MCP servers.", query)
	}

	result := models.Recommendation{
		Recommendations: e.resolve(items),
		Explanation:     explanation,
		Query:           query,
		Source:          models.SourceLLM,
	}
	if e.cache != nil {
		e.cache.Put(query, result)
	}
	e.logger.Debug("llm recommendation",
		zap.String("query", query),
		zap.String("model", resp.Model),
		zap.Int("count", len(result.Recommendations)),
	)
	return modelOutcome{result: result}
}

// resolve replaces model picks with the catalog's full records. Unknown ids
// keep the fields the model returned.
func (e *Engine) resolve(items []replyItem) []models.Listing {
	out := make([]models.Listing, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(string(item.ID))
		if e.resolver != nil {
			if l, err := e.resolver.ByID(id); err == nil {
				out = append(out, l)
				continue
			}
		}
		pkg := strings.TrimSpace(item.PackageName)
		if pkg == "" {
			pkg = unknownPackage
		}
		out = append(out, models.Listing{
			ID:          id,
			Title:       item.Title,
			PackageName: pkg,
			Description: item.Description,
		})
	}
	return out
}

func (e *Engine) fallback(query string, candidates []models.Listing, reason string) models.Recommendation {
	e.metrics.observeFallback(reason)
	e.metrics.observeResult(models.SourceFallback)
	return Fallback(query, candidates)
}
