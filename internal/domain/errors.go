package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrProductSearchFailure is returned when the external product search API fails
	ErrProductSearchFailure = errors.New("product search request failed")

	// ErrIngredientNotFound is returned when no source knows an ingredient
	ErrIngredientNotFound = errors.New("ingredient not found")

	// ErrIngredientLookupFailure is returned when a remote ingredient source fails
	ErrIngredientLookupFailure = errors.New("ingredient lookup failed")

	// ErrScrapeFailure is returned when the enrichment scraper fails
	ErrScrapeFailure = errors.New("scrape request failed")

	// ErrEmbeddingUnavailable is returned when the embedding model cannot encode text
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrCatalogWrite is returned when a catalog batch could not be persisted
	ErrCatalogWrite = errors.New("catalog write failed")

	// ErrRecommendationUnavailable is returned when no recommendation path could run
	ErrRecommendationUnavailable = errors.New("recommendation unavailable")
)
