package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/internal/server"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// maxBodyBytes bounds a recommendation request body.
const maxBodyBytes = 1 << 20

// Recommender is the subset of Engine the handler depends on.
type Recommender interface {
	Recommend(ctx context.Context, query string, candidates []models.Listing) models.Recommendation
}

// Request is the body of POST /api/recommend. Items may carry extra
// presentation fields (icon, iconName); they are ignored.
type Request struct {
	Query string          `json:"query" example:"database"`
	Items json.RawMessage `json:"items" swaggertype:"array,object"`
}

// Handler serves the recommendation API.
type Handler struct {
	engine Recommender
	limit  func(http.Handler) http.Handler
	logger *zap.Logger
}

// NewHandler creates a recommendation handler. limit wraps the route, usually
// with a rate limiter; nil leaves it unwrapped.
func NewHandler(engine Recommender, limit func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, limit: limit, logger: logger}
}

// RegisterRoutes implements server.RouteRegistrar.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	var route http.Handler = http.HandlerFunc(h.handleRecommend)
	if h.limit != nil {
		route = h.limit(route)
	}
	mux.Handle("POST /api/recommend", route)
}

// handleRecommend re-ranks the posted candidates for the query.
//
//	@Summary		Recommend listings
//	@Description	Picks up to three of the posted listings for the query using a language model, with a keyword fallback.
//	@Tags			recommend
//	@Accept			json
//	@Produce		json
//	@Param			request body Request true "Query and candidate listings"
//	@Success		200 {object} models.Recommendation
//	@Failure		400 {object} server.Problem
//	@Failure		429 {object} server.Problem
//	@Failure		500 {object} server.Problem
//	@Router			/recommend [post]
func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.BadRequest(w, "request body too large", r.URL.Path)
			return
		}
		server.BadRequest(w, "request body must be a JSON object", r.URL.Path)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		server.BadRequest(w, "query is required", r.URL.Path)
		return
	}

	items, ok := decodeItems(req.Items)
	if !ok {
		server.BadRequest(w, "items must be an array of listings", r.URL.Path)
		return
	}

	result := h.engine.Recommend(r.Context(), req.Query, items)
	h.logger.Debug("recommendation served",
		zap.String("query", query),
		zap.String("source", string(result.Source)),
		zap.Int("candidates", len(items)),
		zap.Int("count", len(result.Recommendations)),
	)
	server.WriteJSON(w, http.StatusOK, result)
}

func decodeItems(raw json.RawMessage) ([]models.Listing, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var items []models.Listing
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}
