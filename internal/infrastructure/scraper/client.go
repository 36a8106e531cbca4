package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const (
	defaultBaseURL = "https://api.firecrawl.dev"
	defaultTimeout = 30 * time.Second
)

// ingredientsHeading finds an "Ingredients:" / "Ingredientes:" / "INCI:" label
// and captures the text up to the next blank line
var ingredientsHeading = regexp.MustCompile(`(?is)\b(?:ingredients|ingredientes|inci)\s*[:\-]\s*(.+?)(?:\n\s*\n|\n#|$)`)

// Config configures the scraping client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches product pages through a hosted scraping API and extracts
// their ingredient list
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string         `json:"markdown"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

// NewClient creates a scraping client
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)

	return &Client{
		http:   client,
		logger: logger.OrNop(log),
	}
}

// Scrape fetches url and returns the ingredients and category found on it
func (c *Client) Scrape(ctx context.Context, url string) (*domain.ScrapeResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(scrapeRequest{URL: url, Formats: []string{"markdown"}, OnlyMainContent: true}).
		Post("/v1/scrape")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScrapeFailure, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrScrapeFailure, resp.StatusCode())
	}

	var parsed scrapeResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrScrapeFailure, err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrScrapeFailure, parsed.Error)
	}

	result := &domain.ScrapeResult{
		Ingredients: ExtractIngredients(parsed.Data.Markdown),
		Category:    metadataString(parsed.Data.Metadata, "category"),
	}
	c.logger.Debug("Scraped product page",
		zap.String("url", url),
		zap.Int("ingredients", len(result.Ingredients)),
	)
	return result, nil
}

// ExtractIngredients pulls the first labelled ingredient list out of page text
func ExtractIngredients(text string) []string {
	m := ingredientsHeading.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	block := strings.NewReplacer("*", "", "_", "", "\n", " ").Replace(m[1])
	block = strings.TrimSuffix(strings.TrimSpace(block), ".")

	items := domain.ParseIngredientList(block)
	out := items[:0]
	for _, item := range items {
		if len(item) <= 80 {
			out = append(out, item)
		}
	}
	return out
}

func metadataString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
