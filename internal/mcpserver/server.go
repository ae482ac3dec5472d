// Package mcpserver exposes catalog search and recommendations as MCP tools
// over the streamable HTTP transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/internal/catalog"
	"github.com/Really-Cool/mcpapi/internal/recommend"
	"github.com/Really-Cool/mcpapi/internal/version"
	pkgcatalog "github.com/Really-Cool/mcpapi/pkg/catalog"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// Tool names.
const (
	ToolSearch    = "search_listings"
	ToolGet       = "get_listing"
	ToolRecommend = "recommend_listings"
)

// DefaultRecommendLimit is how many filtered listings are offered to the
// recommendation engine when the caller gives no limit.
const DefaultRecommendLimit = 10

// SearchInput are the arguments of search_listings.
type SearchInput struct {
	Query    string `json:"query,omitempty" jsonschema:"free-text keyword matched against title, description and package name"`
	Page     int    `json:"page,omitempty" jsonschema:"1-based page number, default 1"`
	PageSize int    `json:"pageSize,omitempty" jsonschema:"page size, default 10, max 100"`
}

// GetInput are the arguments of get_listing.
type GetInput struct {
	ID string `json:"id" jsonschema:"listing id"`
}

// RecommendInput are the arguments of recommend_listings.
type RecommendInput struct {
	Query string `json:"query" jsonschema:"what the user needs an MCP server for"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of filtered listings to consider, default 10, max 100"`
}

// Server holds the MCP server and its tool dependencies.
type Server struct {
	mcp         *mcp.Server
	engine      *catalog.Engine
	recommender recommend.Recommender
	logger      *zap.Logger
}

// New creates a Server with all tools registered.
func New(engine *catalog.Engine, recommender recommend.Recommender, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:         mcp.NewServer(&mcp.Implementation{Name: "mcpapi", Version: version.Short()}, nil),
		engine:      engine,
		recommender: recommender,
		logger:      logger,
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearch,
		Description: "Search the MCP server directory. A query that matches nothing returns the whole directory with matched=false.",
	}, recovered(s.logger, s.search))
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGet,
		Description: "Fetch one MCP server listing by id.",
	}, recovered(s.logger, s.get))
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolRecommend,
		Description: "Recommend up to three MCP servers for a need, with an explanation.",
	}, recovered(s.logger, s.recommend))

	return s
}

// recovered turns a handler panic into a tool error. The SDK runs handlers
// on its own goroutines without recovery.
func recovered[In, Out any](logger *zap.Logger, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (res *mcp.CallToolResult, out Out, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("mcp tool panic", zap.Any("panic", p), zap.Stack("stack"))
				var zero Out
				res, out, err = nil, zero, errors.New("internal error")
			}
		}()
		return h(ctx, req, in)
	}
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Handler returns the streamable HTTP handler for the MCP endpoint.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

func clampPageSize(n int) int {
	if n > catalog.MaxPageSize {
		return catalog.MaxPageSize
	}
	return n
}

func (s *Server) search(_ context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, models.SearchPage, error) {
	page, err := s.engine.Search(in.Query, in.Page, clampPageSize(in.PageSize))
	if err != nil {
		s.logger.Error("mcp search failed", zap.Error(err))
		return nil, models.SearchPage{}, errors.New("catalog unavailable")
	}
	return nil, page, nil
}

func (s *Server) get(_ context.Context, _ *mcp.CallToolRequest, in GetInput) (*mcp.CallToolResult, models.Listing, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, models.Listing{}, errors.New("id is required")
	}
	l, err := s.engine.Get(id)
	if errors.Is(err, pkgcatalog.ErrNotFound) {
		return nil, models.Listing{}, fmt.Errorf("listing %q not found", id)
	}
	if err != nil {
		s.logger.Error("mcp get failed", zap.String("id", id), zap.Error(err))
		return nil, models.Listing{}, errors.New("catalog unavailable")
	}
	return nil, l, nil
}

func (s *Server) recommend(ctx context.Context, _ *mcp.CallToolRequest, in RecommendInput) (*mcp.CallToolResult, models.Recommendation, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, models.Recommendation{}, errors.New("query is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}
	page, err := s.engine.Search(in.Query, 1, clampPageSize(limit))
	if err != nil {
		s.logger.Error("mcp recommend search failed", zap.Error(err))
		return nil, models.Recommendation{}, errors.New("catalog unavailable")
	}
	return nil, s.recommender.Recommend(ctx, in.Query, page.Items), nil
}
