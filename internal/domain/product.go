package domain

import (
	"strings"
	"time"
)

// Product is a persisted catalog entry
type Product struct {
	ID            uint           `json:"id"`
	Name          string         `json:"name"`
	Brand         string         `json:"brand"`
	Ingredients   []string       `json:"ingredients"`
	Category      string         `json:"category,omitempty"`
	EcoScore      *float64       `json:"eco_score,omitempty"`
	RiskLevel     RiskLevel      `json:"risk_level,omitempty"`
	RatingAverage float64        `json:"rating_average"`
	RatingCount   int            `json:"rating_count"`
	ExtraMetadata map[string]any `json:"extra_metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
}

// CatalogCandidate is a product found during catalog expansion, before or
// right after persistence
type CatalogCandidate struct {
	ProductID     uint           `json:"product_id,omitempty"`
	Name          string         `json:"name"`
	Brand         string         `json:"brand"`
	Ingredients   []string       `json:"ingredients"`
	Category      string         `json:"category,omitempty"`
	EcoScore      *float64       `json:"eco_score,omitempty"`
	RiskLevel     RiskLevel      `json:"risk_level,omitempty"`
	RatingAverage float64        `json:"rating_average"`
	RatingCount   int            `json:"rating_count"`
	ExtraMetadata map[string]any `json:"extra_metadata,omitempty"`
	SourceURL     string         `json:"source_url,omitempty"`
	MatchScore    float64        `json:"match_score"`
	Reason        string         `json:"reason,omitempty"`
}

// LookupKey returns the case-insensitive (name, brand) key of the candidate
func (c *CatalogCandidate) LookupKey() string {
	return LookupKey(c.Name, c.Brand)
}

// LookupKey builds the case-insensitive (name, brand) deduplication key
func LookupKey(name, brand string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(brand))
}

// RawProduct is a single hit returned by the external product search
type RawProduct struct {
	Name           string `json:"name"`
	Brand          string `json:"brand"`
	IngredientsRaw string `json:"ingredients_raw"`
	Category       string `json:"category"`
	EcoScoreRaw    string `json:"eco_score_raw"`
	SourceURL      string `json:"source_url"`
}

// ScrapeResult is the supplementary data fetched from a product page
type ScrapeResult struct {
	Ingredients []string `json:"ingredients"`
	Category    string   `json:"category"`
}

// UpsertResult reports what happened to one candidate in a catalog batch
type UpsertResult struct {
	Product Product
	Created bool
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}
