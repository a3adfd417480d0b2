// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/govchat-nl/policyscan/internal/indexer"
	"github.com/govchat-nl/policyscan/internal/processor"
	"github.com/govchat-nl/policyscan/internal/scraper"
	"github.com/govchat-nl/policyscan/internal/search"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	DB        DBConfig                  `mapstructure:"db"`
	Search    search.MeiliConfig        `mapstructure:"search"`
	Processor processor.Config          `mapstructure:"processor"`
	Indexer   indexer.Config            `mapstructure:"indexer"`
	Scrapers  map[string]scraper.Config `mapstructure:"scrapers"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POLICYSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("search.url", "http://localhost:7700")
	v.SetDefault("search.index_name", "policy_documents")
	v.SetDefault("processor.max_chunk_size", processor.DefaultMaxChunkSize)
	v.SetDefault("processor.overlap_size", processor.DefaultOverlapSize)
	v.SetDefault("processor.summary_length", processor.DefaultSummaryLength)
	v.SetDefault("indexer.batch_size", indexer.DefaultBatchSize)
	v.SetDefault("indexer.storage_path", indexer.DefaultStoragePath)
}

// Validate enforces required values and reasonable limits. Scraper blocks
// are normalized in place so plugin constructors receive complete configs.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Search.URL == "" {
		return fmt.Errorf("search.url is required")
	}
	for name, sc := range c.Scrapers {
		sc.Normalize()
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("scrapers.%s: %w", name, err)
		}
		c.Scrapers[name] = sc
	}
	return nil
}

// Scraper returns the normalized configuration block for one plugin.
func (c *Config) Scraper(name string) (scraper.Config, bool) {
	sc, ok := c.Scrapers[name]
	return sc, ok
}
