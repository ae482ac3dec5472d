package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable bound to a key,
// e.g. MCPAPI_SERVER_PORT for server.port.
const EnvPrefix = "MCPAPI"

// Settings is the typed service configuration.
type Settings struct {
	Server    ServerSettings    `mapstructure:"server"`
	LLM       LLMSettings       `mapstructure:"llm"`
	Recommend RecommendSettings `mapstructure:"recommend"`
	RateLimit RateLimitSettings `mapstructure:"ratelimit"`
	Log       LogSettings       `mapstructure:"log"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LLMSettings configures the chat completions provider. An empty APIKey
// disables the model path; recommendations then use the keyword fallback.
type LLMSettings struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// RecommendSettings configures the recommendation engine and its cache.
type RecommendSettings struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheCapacity int           `mapstructure:"cache_capacity"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
}

// RateLimitSettings configures the recommendation endpoint limiter. An empty
// RedisURL selects the in-memory backend.
type RateLimitSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	Limit    int           `mapstructure:"limit"`
	Window   time.Duration `mapstructure:"window"`
	RedisURL string        `mapstructure:"redis_url"`
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// legacyEnv lists environment variables accepted in addition to the
// MCPAPI_* name of each key, in priority order.
var legacyEnv = map[string][]string{
	"llm.api_key":         {"OPENAI_API_KEY", "DEEPSEEK_API_KEY"},
	"llm.base_url":        {"LLM_API_BASE_URL"},
	"llm.model":           {"LLM_MODEL"},
	"ratelimit.redis_url": {"REDIS_URL"},
	"server.port":         {"PORT"},
}

// SetDefaults registers every known key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)

	v.SetDefault("recommend.cache_ttl", 24*time.Hour)
	v.SetDefault("recommend.cache_capacity", 1024)
	v.SetDefault("recommend.temperature", 0.6)
	v.SetDefault("recommend.max_tokens", 1000)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 5)
	v.SetDefault("ratelimit.window", time.Second)
	v.SetDefault("ratelimit.redis_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. Empty means none.
	ConfigFile string
	// EnvFiles are dotenv files loaded before the environment is read.
	// Missing files are skipped. Nil means ".env".
	EnvFiles []string
}

// Load reads defaults, the optional config file, dotenv files and the
// environment (highest precedence), then validates the result.
func Load(opts LoadOptions) (*Settings, *ViperConfig, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range legacyEnv {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	cfg := New(v)
	var s Settings
	if err := cfg.Unmarshal(&s); err != nil {
		return nil, nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	return &s, cfg, nil
}

// Validate checks value ranges and cross-field constraints.
func (s *Settings) Validate() error {
	var errs []error
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}
	if s.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if s.Server.WriteTimeout > 0 && s.Server.WriteTimeout <= s.LLM.Timeout {
		errs = append(errs, fmt.Errorf("server.write_timeout (%s) must exceed llm.timeout (%s)",
			s.Server.WriteTimeout, s.LLM.Timeout))
	}
	if s.LLM.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("llm.requests_per_second must not be negative"))
	}
	if s.Recommend.CacheTTL <= 0 {
		errs = append(errs, errors.New("recommend.cache_ttl must be positive"))
	}
	if s.Recommend.CacheCapacity <= 0 {
		errs = append(errs, errors.New("recommend.cache_capacity must be positive"))
	}
	if s.RateLimit.Enabled && (s.RateLimit.Limit <= 0 || s.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("ratelimit.limit and ratelimit.window must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
