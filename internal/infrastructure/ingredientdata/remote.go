package ingredientdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteConfig configures the remote ingredient-data API
type RemoteConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RemoteSource looks ingredients up in an HTTP ingredient-data API
type RemoteSource struct {
	name   string
	http   *resty.Client
	logger *zap.Logger
}

// remoteRecord is the API payload. Some deployments name fields differently.
type remoteRecord struct {
	Name          string          `json:"name"`
	EcoScore      json.RawMessage `json:"eco_score"`
	RiskLevel     string          `json:"risk_level"`
	Risk          string          `json:"risk"`
	Benefits      string          `json:"benefits"`
	RisksDetailed string          `json:"risks_detailed"`
	Sources       string          `json:"sources"`
}

// NewRemoteSource creates a remote ingredient source
func NewRemoteSource(cfg RemoteConfig, log *zap.Logger) *RemoteSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRemoteTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "ingredient_api"
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &RemoteSource{
		name:   cfg.Name,
		http:   client,
		logger: logger.OrNop(log),
	}
}

// Name identifies the source in logs and the Sources field
func (s *RemoteSource) Name() string {
	return s.name
}

// Lookup fetches one ingredient. A 404 yields domain.ErrIngredientNotFound.
func (s *RemoteSource) Lookup(ctx context.Context, name string) (*domain.IngredientData, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		Get("/ingredients/" + url.PathEscape(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrIngredientLookupFailure, s.name, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrIngredientNotFound
	default:
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrIngredientLookupFailure, s.name, resp.StatusCode())
	}

	var rec remoteRecord
	if err := json.Unmarshal(resp.Body(), &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: failed to decode response: %v", domain.ErrIngredientLookupFailure, s.name, err)
	}

	return s.toIngredientData(name, &rec), nil
}

func (s *RemoteSource) toIngredientData(name string, rec *remoteRecord) *domain.IngredientData {
	data := &domain.IngredientData{
		Name:          rec.Name,
		Benefits:      rec.Benefits,
		RisksDetailed: rec.RisksDetailed,
		Sources:       rec.Sources,
	}
	if data.Name == "" {
		data.Name = name
	}
	if data.Sources == "" {
		data.Sources = s.name
	}

	risk := rec.RiskLevel
	if risk == "" {
		risk = rec.Risk
	}
	data.RiskLevel = domain.ParseRiskLevel(risk)

	if score, ok := parseScore(rec.EcoScore); ok {
		data.EcoScore = &score
	} else if len(rec.EcoScore) > 0 && string(rec.EcoScore) != "null" {
		s.logger.Debug("Ignoring unparseable eco score",
			zap.String("ingredient", name),
			zap.ByteString("eco_score", rec.EcoScore),
		)
	}
	return data
}

// parseScore accepts a JSON number or a numeric string
func parseScore(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s json.Number
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := s.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
