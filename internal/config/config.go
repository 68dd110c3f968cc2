// Package config loads the operator-facing configuration for the
// retrieval engine: storage, model, cache, and tracing wiring, plus the
// default Recall/Expand/Rerank parameters a caller can override per
// request. Grounded on the teacher's internal/config/config.go: same
// viper setup (named config file, search paths, ${ENV_VAR} substitution
// pass over the raw file before Unmarshal), generalized from the
// teacher's chat-service sections to this engine's domain.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/clueweave/clueweave/internal/models/chat"
	"github.com/clueweave/clueweave/internal/models/embedding"
	"github.com/clueweave/clueweave/internal/types"
)

// Config is the engine's top-level configuration.
type Config struct {
	Runtime     RuntimeConfig     `mapstructure:"runtime"`
	Database    DatabaseConfig    `mapstructure:"database"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Embedding   embedding.Config  `mapstructure:"embedding"`
	Chat        chat.Config       `mapstructure:"chat"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Tokenizer   TokenizerConfig   `mapstructure:"tokenizer"`
	Search      SearchConfig      `mapstructure:"search"`
}

// RuntimeConfig carries the ambient process settings the teacher's
// ServerConfig carries (log level/path, shutdown grace period), minus
// the HTTP listener fields this engine has no use for.
type RuntimeConfig struct {
	LogLevel        string        `mapstructure:"log_level"`
	LogPath         string        `mapstructure:"log_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig is the gorm/postgres connection for the entity↔event
// graph (internal/repository/postgres.GraphRepo) and its pgvector
// fallback vector tables.
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// VectorStoreConfig selects and configures the entity/event/chunk vector
// store backend: Elasticsearch (primary) or pgvector (fallback, reusing
// DatabaseConfig's connection).
type VectorStoreConfig struct {
	Driver        string              `mapstructure:"driver"` // "elasticsearch" or "pgvector"
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	EntityIndex   string              `mapstructure:"entity_index"`
	EventIndex    string              `mapstructure:"event_index"`
	ChunkIndex    string              `mapstructure:"chunk_index"`
}

// ElasticsearchConfig configures the go-elasticsearch/v8 typed client.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// CacheConfig configures the query-embedding memoization layer
// (internal/cache), carrying the same memory/redis duality as the
// teacher's StreamManagerConfig.
type CacheConfig struct {
	Type  string        `mapstructure:"type"` // "memory" or "redis"
	Redis RedisConfig   `mapstructure:"redis"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// RedisConfig mirrors the teacher's RedisConfig field-for-field.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// TracingConfig configures the otel span exporter.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	Exporter     string `mapstructure:"exporter"` // "otlp" or "stdout"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// TokenizerConfig names a gojieba dictionary directory for the BM25
// tokenizer. DictDir is not read anywhere: internal/numeric.NewTokenizer
// takes no configuration and always loads gojieba's default dictionary.
type TokenizerConfig struct {
	DictDir string `mapstructure:"dict_dir"`
}

// SearchConfig carries the default Recall/Expand/Rerank parameters a
// caller can override per request; zero-valued sub-configs fall back to
// types.Default*Config via types.SearchConfig.EnsureDefaults.
type SearchConfig struct {
	Recall types.RecallConfig `mapstructure:"recall"`
	Expand types.ExpandConfig `mapstructure:"expand"`
	Rerank types.RerankConfig `mapstructure:"rerank"`
}

// NewSearchConfig builds a types.SearchConfig for query against
// sourceConfigIDs, seeded with this Config's default Recall/Expand/Rerank
// parameters and filled out by EnsureDefaults where they were left zero.
func (c *Config) NewSearchConfig(query string, sourceConfigIDs []string) types.SearchConfig {
	sc := types.SearchConfig{
		Query:           query,
		SourceConfigIDs: sourceConfigIDs,
		Recall:          c.Search.Recall,
		Expand:          c.Search.Expand,
		Rerank:          c.Search.Rerank,
	}
	sc.EnsureDefaults()
	return sc
}

// LoadConfig reads config.yaml (or the path set by CONFIG_FILE) from the
// current directory, ./config, $HOME/.clueweave, or /etc/clueweave,
// substitutes ${ENV_VAR} references in the raw file before parsing, and
// decodes into Config. Environment variables also override any key
// directly (FOO_BAR overrides foo.bar), matching the teacher's
// AutomaticEnv + SetEnvKeyReplacer setup.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.clueweave")
	viper.AddConfigPath("/etc/clueweave/")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	raw, err := os.ReadFile(viper.ConfigFileUsed())
	if err != nil {
		return nil, fmt.Errorf("read config file content: %w", err)
	}

	envRef := regexp.MustCompile(`\${([^}]+)}`)
	substituted := envRef.ReplaceAllStringFunc(string(raw), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
	if err := viper.ReadConfig(strings.NewReader(substituted)); err != nil {
		return nil, fmt.Errorf("reload substituted config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
