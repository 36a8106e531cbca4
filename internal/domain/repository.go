package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogStore persists Product rows keyed by case-insensitive (name, brand)
type CatalogStore interface {
	// Upsert writes all candidates in one transaction; either every row
	// commits or none does.
	Upsert(ctx context.Context, candidates []CatalogCandidate) ([]UpsertResult, error)
	QueryAll(ctx context.Context) ([]Product, error)
}

// IngredientDataProvider resolves safety and eco data for an ingredient
type IngredientDataProvider interface {
	// Get is a local lookup; it never fails and returns nil on a miss.
	Get(name string) *IngredientData
	// Fetch consults remote sources and may fail.
	Fetch(ctx context.Context, name string) (*IngredientData, error)
}

// ProductSearcher finds products containing an ingredient in an external database
type ProductSearcher interface {
	Search(ctx context.Context, ingredient string, limit int) ([]RawProduct, error)
}

// Scraper fetches supplementary ingredient data from a product page
type Scraper interface {
	Scrape(ctx context.Context, url string) (*ScrapeResult, error)
}

// Embedder encodes texts into dense vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
