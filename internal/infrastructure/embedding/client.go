package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const (
	defaultBaseURL   = "https://api.openai.com"
	defaultModel     = "text-embedding-3-small"
	defaultTimeout   = 30 * time.Second
	defaultBatchSize = 64
)

// Config configures the embeddings client
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// Client encodes texts through an OpenAI-compatible embeddings endpoint
type Client struct {
	http      *resty.Client
	model     string
	batchSize int
	logger    *zap.Logger
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewClient creates an embeddings client
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)

	return &Client{
		http:      client,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		logger:    logger.OrNop(log),
	}
}

// Embed returns one vector per text, in input order
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Input: texts, Model: c.model}).
		Post("/v1/embeddings")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn("Embeddings API returned an error status",
			zap.Int("status", resp.StatusCode()),
			zap.String("model", c.model),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrEmbeddingUnavailable, resp.StatusCode())
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors, want %d", domain.ErrEmbeddingUnavailable, len(parsed.Data), len(texts))
	}

	sort.SliceStable(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vectors := make([][]float64, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
