package beautyfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const (
	defaultBaseURL   = "https://world.openbeautyfacts.org"
	defaultRateLimit = 1.0
	defaultTimeout   = 15 * time.Second
	maxPageSize      = 100
	searchFields     = "code,product_name,product_name_en,generic_name,brands,ingredients_text,ingredients_text_en,categories,ecoscore_grade,ecoscore_score,url"
)

// Config configures the Open Beauty Facts client
type Config struct {
	BaseURL   string
	RateLimit float64 // requests per second
	Timeout   time.Duration
}

// Client searches the Open Beauty Facts product database
type Client struct {
	http        *resty.Client
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new Open Beauty Facts client
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "MommyShops/1.0").
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		http:        httpClient,
		baseURL:     cfg.BaseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 5),
		logger:      logger.OrNop(log),
	}
}

// Search returns up to limit products whose ingredient list mentions ingredient.
// Zero hits is not an error.
func (c *Client) Search(ctx context.Context, ingredient string, limit int) ([]domain.RawProduct, error) {
	if limit <= 0 {
		return []domain.RawProduct{}, nil
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_terms":  ingredient,
			"search_simple": "1",
			"action":        "process",
			"json":          "1",
			"page_size":     strconv.Itoa(limit),
			"fields":        searchFields,
		}).
		Get("/cgi/search.pl")
	if err != nil {
		c.logger.Warn("Open Beauty Facts request failed",
			zap.String("ingredient", ingredient),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrProductSearchFailure, err)
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn("Open Beauty Facts returned an error status",
			zap.String("ingredient", ingredient),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrProductSearchFailure, resp.StatusCode())
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrProductSearchFailure, err)
	}

	products := MapToRawProducts(searchResp.Products, c.baseURL)
	if len(products) > limit {
		products = products[:limit]
	}

	c.logger.Debug("Open Beauty Facts search",
		zap.String("ingredient", ingredient),
		zap.Int("results", len(products)),
	)
	return products, nil
}
