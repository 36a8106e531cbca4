package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server            ServerConfig            `mapstructure:"server"`
	Database          DatabaseConfig          `mapstructure:"database"`
	Cache             CacheConfig             `mapstructure:"cache"`
	Index             IndexConfig             `mapstructure:"index"`
	Recommender       RecommenderConfig       `mapstructure:"recommender"`
	BeautyFacts       BeautyFactsConfig       `mapstructure:"beautyfacts"`
	IngredientAPI     IngredientAPIConfig     `mapstructure:"ingredient_api"`
	IngredientCatalog IngredientCatalogConfig `mapstructure:"ingredient_catalog"`
	Scraper           ScraperConfig           `mapstructure:"scraper"`
	Embedding         EmbeddingConfig         `mapstructure:"embedding"`
	Normalizer        NormalizerConfig        `mapstructure:"normalizer"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogLevel       string   `mapstructure:"log_level"`
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "postgres" or "sqlite"
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type       string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL   string        `mapstructure:"redis_url"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
}

// IndexConfig holds similarity index configuration
type IndexConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RecommenderConfig holds recommendation tuning
type RecommenderConfig struct {
	MinEcoScore float64 `mapstructure:"min_eco_score"`
	TopK        int     `mapstructure:"top_k"`
	MaxProducts int     `mapstructure:"max_products"`
	Workers     int     `mapstructure:"workers"`
}

// BeautyFactsConfig holds Open Beauty Facts API configuration
type BeautyFactsConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
	Timeout   time.Duration `mapstructure:"timeout"`
}

// IngredientAPIConfig holds the remote ingredient-data API configuration
type IngredientAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IngredientCatalogConfig points at the local ingredient catalog (CSV or JSON)
type IngredientCatalogConfig struct {
	Path string `mapstructure:"path"`
}

// ScraperConfig holds the enrichment scraper configuration.
// Enrichment runs only when APIKey is set.
type ScraperConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig holds the sentence-embedding API configuration.
// TF-IDF is used when APIKey is empty.
type EmbeddingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NormalizerConfig holds ingredient normalizer configuration
type NormalizerConfig struct {
	AliasesFile string `mapstructure:"aliases_file"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mommyshops/")

	// Environment variable settings
	v.SetEnvPrefix("MOMMYSHOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
// Every key is given a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8501"})
	v.SetDefault("server.log_level", "info")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mommyshops.db")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.catalog_ttl", "6h")

	// Index defaults
	v.SetDefault("index.ttl", "30m")

	// Recommender defaults
	v.SetDefault("recommender.min_eco_score", 70.0)
	v.SetDefault("recommender.top_k", 3)
	v.SetDefault("recommender.max_products", 20)
	v.SetDefault("recommender.workers", 4)

	// External sources
	v.SetDefault("beautyfacts.base_url", "https://world.openbeautyfacts.org")
	v.SetDefault("beautyfacts.rate_limit", 1.0)
	v.SetDefault("beautyfacts.timeout", "15s")

	v.SetDefault("ingredient_api.base_url", "")
	v.SetDefault("ingredient_api.api_key", "")
	v.SetDefault("ingredient_api.timeout", "10s")

	v.SetDefault("ingredient_catalog.path", "")

	v.SetDefault("scraper.base_url", "https://api.firecrawl.dev")
	v.SetDefault("scraper.api_key", "")
	v.SetDefault("scraper.timeout", "30s")

	v.SetDefault("embedding.base_url", "https://api.openai.com")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", "30s")

	v.SetDefault("normalizer.aliases_file", "")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return fmt.Errorf("database driver must be 'postgres' or 'sqlite', got: %s", config.Database.Driver)
	}

	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (set MOMMYSHOPS_DATABASE_DSN)")
	}

	if config.Recommender.TopK <= 0 {
		return fmt.Errorf("recommender top_k must be positive, got: %d", config.Recommender.TopK)
	}

	if config.Recommender.MinEcoScore < 0 || config.Recommender.MinEcoScore > 100 {
		return fmt.Errorf("recommender min_eco_score must be within [0, 100], got: %.1f", config.Recommender.MinEcoScore)
	}

	return nil
}
