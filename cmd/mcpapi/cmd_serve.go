package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/internal/catalog"
	"github.com/Really-Cool/mcpapi/internal/config"
	"github.com/Really-Cool/mcpapi/internal/llm/openai"
	"github.com/Really-Cool/mcpapi/internal/mcpserver"
	"github.com/Really-Cool/mcpapi/internal/ratelimit"
	"github.com/Really-Cool/mcpapi/internal/recommend"
	"github.com/Really-Cool/mcpapi/internal/server"
	"github.com/Really-Cool/mcpapi/internal/version"
	pkgcatalog "github.com/Really-Cool/mcpapi/pkg/catalog"
	"github.com/Really-Cool/mcpapi/pkg/llm"
)

const defaultShutdownTimeout = 10 * time.Second

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	envFile := fs.String("env-file", ".env", "dotenv file loaded before the environment")
	dev := fs.Bool("dev", false, "use the development logger")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	settings, _, err := config.Load(config.LoadOptions{
		ConfigFile: *configPath,
		EnvFiles:   []string{*envFile},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(settings.Log.Level, *dev || settings.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("mcpapi server starting", zap.String("version", version.Short()))

	if err := serve(settings, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("mcpapi server stopped")
}

func serve(settings *config.Settings, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cat := pkgcatalog.NewCatalog()
	if err := cat.Load(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	engine := catalog.NewEngine(cat)
	logger.Info("catalog loaded", zap.Int("listings", cat.Len()))

	var provider llm.Provider
	if settings.LLM.APIKey != "" {
		client := openai.New(openai.Config{
			BaseURL:           settings.LLM.BaseURL,
			APIKey:            settings.LLM.APIKey,
			Model:             settings.LLM.Model,
			Timeout:           settings.LLM.Timeout,
			RequestsPerSecond: settings.LLM.RequestsPerSecond,
			Burst:             settings.LLM.Burst,
		}, logger.Named("llm"))
		provider = client
		logger.Info("llm provider configured", zap.String("model", client.Model()))
	} else {
		logger.Warn("no llm api key configured, recommendations use the keyword fallback")
	}

	recommender := recommend.NewEngine(
		provider,
		recommend.NewMemoryCache(settings.Recommend.CacheCapacity, settings.Recommend.CacheTTL, nil),
		cat,
		logger.Named("recommend"),
		recommend.WithTimeout(settings.LLM.Timeout),
		recommend.WithModel(settings.LLM.Model),
		recommend.WithSampling(settings.Recommend.Temperature, settings.Recommend.MaxTokens),
		recommend.WithMetrics(recommend.NewMetrics(reg)),
	)

	var limit func(http.Handler) http.Handler
	if settings.RateLimit.Enabled {
		limiter, closeLimiter, err := newLimiter(settings.RateLimit, logger)
		if err != nil {
			return err
		}
		defer closeLimiter()
		limit = ratelimit.NewMiddleware(limiter, logger.Named("ratelimit"), reg).Wrap
	}

	srv := server.New(server.Config{
		Addr:         settings.Server.Addr(),
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
		IdleTimeout:  settings.Server.IdleTimeout,
		Metrics:      reg,
	}, logger.Named("http"),
		catalog.NewHandler(engine, logger.Named("catalog")),
		recommend.NewHandler(recommender, limit, logger.Named("recommend")),
	)
	srv.Mount("/mcp", mcpserver.New(engine, recommender, logger.Named("mcp")).Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("mcpapi server ready", zap.String("addr", srv.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	timeout := settings.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLimiter selects the Redis backend when a URL is configured and the
// in-memory one otherwise. The returned func releases the backend.
func newLimiter(s config.RateLimitSettings, logger *zap.Logger) (ratelimit.Limiter, func(), error) {
	if s.RedisURL == "" {
		logger.Info("rate limiter using memory backend", zap.Int("limit", s.Limit), zap.Duration("window", s.Window))
		return ratelimit.NewMemoryLimiter(s.Limit, s.Window, nil), func() {}, nil
	}
	client, err := ratelimit.DialRedis(s.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}
	logger.Info("rate limiter using redis backend", zap.Int("limit", s.Limit), zap.Duration("window", s.Window))
	return ratelimit.NewRedisLimiter(client, s.Limit, s.Window, nil), func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}, nil
}
