package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Really-Cool/mcpapi/internal/server"
	pkgcatalog "github.com/Really-Cool/mcpapi/pkg/catalog"
	"github.com/Really-Cool/mcpapi/pkg/models"
	"go.uber.org/zap"
)

// Handler serves the catalog query API.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a new catalog API handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes implements server.RouteRegistrar.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/mcp", h.handleSearch)
	mux.HandleFunc("GET /api/mcp/{id}", h.handleGet)
	mux.HandleFunc("GET /api/sections", h.handleSections)
}

// handleSearch returns one page of the filtered catalog.
//
//	@Summary		Search listings
//	@Description	Filters listings by a case-insensitive keyword on title, description and package name. A query that matches nothing returns the whole catalog with matched=false.
//	@Tags			catalog
//	@Produce		json
//	@Param			query query string false "Free-text query"
//	@Param			page query int false "1-based page number" default(1)
//	@Param			pageSize query int false "Page size (max 100)" default(10)
//	@Success		200 {object} models.SearchPage
//	@Failure		400 {object} server.Problem
//	@Failure		500 {object} server.Problem
//	@Router			/mcp [get]
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, ok := intParam(q.Get("page"), DefaultPage)
	if !ok {
		server.BadRequest(w, "page must be an integer", r.URL.Path)
		return
	}
	pageSize, ok := intParam(q.Get("pageSize"), DefaultPageSize)
	if !ok {
		server.BadRequest(w, "pageSize must be an integer", r.URL.Path)
		return
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query := q.Get("query")
	result, err := h.engine.Search(query, page, pageSize)
	if err != nil {
		h.logger.Error("failed to search catalog", zap.Error(err))
		server.InternalError(w, "failed to process catalog query", r.URL.Path)
		return
	}

	if !result.Matched {
		h.logger.Debug("query matched nothing, returning full catalog",
			zap.String("query", query),
			zap.Int("total", result.Total),
		)
	}

	server.WriteJSON(w, http.StatusOK, result)
}

// handleGet returns a single listing.
//
//	@Summary		Get listing
//	@Tags			catalog
//	@Produce		json
//	@Param			id path string true "Listing id"
//	@Success		200 {object} models.Listing
//	@Failure		404 {object} server.Problem
//	@Router			/mcp/{id} [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	listing, err := h.engine.Get(id)
	if err != nil {
		if errors.Is(err, pkgcatalog.ErrNotFound) {
			server.NotFound(w, "listing "+id+" not found", r.URL.Path)
			return
		}
		h.logger.Error("failed to load listing", zap.String("id", id), zap.Error(err))
		server.InternalError(w, "failed to load catalog", r.URL.Path)
		return
	}

	server.WriteJSON(w, http.StatusOK, listing)
}

// handleSections returns the catalog grouped by section.
//
//	@Summary		List sections
//	@Tags			catalog
//	@Produce		json
//	@Success		200 {array} models.Section
//	@Failure		500 {object} server.Problem
//	@Router			/sections [get]
func (h *Handler) handleSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.engine.Sections()
	if err != nil {
		h.logger.Error("failed to load catalog", zap.Error(err))
		server.InternalError(w, "failed to load catalog", r.URL.Path)
		return
	}

	if sections == nil {
		sections = []models.Section{}
	}
	server.WriteJSON(w, http.StatusOK, sections)
}

// intParam parses an optional integer query parameter. Empty input yields def.
func intParam(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
