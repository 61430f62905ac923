package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	API      APIConfig      `mapstructure:"api"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Pillars  PillarsConfig  `mapstructure:"pillars"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// APIConfig contains REST API settings.
type APIConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	UncachedPerMinute    int    `mapstructure:"uncached_per_minute"` // per-IP budget for analyses that miss the cache
	RequestTimeoutMillis int    `mapstructure:"request_timeout_ms"`
	EnableMetrics        bool   `mapstructure:"enable_metrics"`
}

// CacheConfig contains analysis-cache settings.
type CacheConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "redis"
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// RedisConfig contains Redis settings for the redis cache backend.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig contains PostgreSQL settings for the knowledge base.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Enabled  bool   `mapstructure:"enabled"`
}

// NATSConfig contains event publishing settings.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// LLMConfig contains model gateway settings.
type LLMConfig struct {
	Endpoint          string  `mapstructure:"endpoint"`
	EmbeddingEndpoint string  `mapstructure:"embedding_endpoint"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	EmbeddingModel    string  `mapstructure:"embedding_model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	TimeoutMillis     int     `mapstructure:"timeout_ms"`
	MaxRetries        int     `mapstructure:"max_retries"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
	TopK     int `mapstructure:"retrieval_top_k"`
}

// PillarsConfig contains pillar scoring settings.
type PillarsConfig struct {
	TimeoutMillis int `mapstructure:"timeout_ms"` // individual per-pillar budget
	HeadlineLimit int `mapstructure:"headline_limit"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("STOCKLENS")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive, got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Agent.MaxTurns < 1 || c.Agent.MaxTurns > 32 {
		return fmt.Errorf("agent.max_turns must be in [1,32], got %d", c.Agent.MaxTurns)
	}
	if c.Pillars.TimeoutMillis <= 0 {
		return fmt.Errorf("pillars.timeout_ms must be positive, got %d", c.Pillars.TimeoutMillis)
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "StockLens")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)
	v.SetDefault("api.uncached_per_minute", 5)
	v.SetDefault("api.request_timeout_ms", 60000)
	v.SetDefault("api.enable_metrics", true)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_seconds", 900)
	v.SetDefault("cache.max_entries", 128)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "stocklens")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.enabled", false)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)

	v.SetDefault("llm.endpoint", "http://localhost:8080/v1/chat/completions")
	v.SetDefault("llm.embedding_endpoint", "http://localhost:8080/v1/embeddings")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout_ms", 30000)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("agent.max_turns", 10)
	v.SetDefault("agent.retrieval_top_k", 5)

	v.SetDefault("pillars.timeout_ms", 10000)
	v.SetDefault("pillars.headline_limit", 10)
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address.
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequestTimeout returns the overall per-request deadline.
func (c *APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

// TTL returns the cache TTL as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// GetTimeout returns the LLM timeout as a duration.
func (c *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// Timeout returns the per-pillar budget as a duration.
func (c *PillarsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}
