package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
	"github.com/mommyshops/backend/internal/usecase"
)

const (
	maxIngredients = 200
	maxTopK        = 50
)

// RecommendationService produces substitute recommendations
type RecommendationService interface {
	GenerateRecommendations(ctx context.Context, req domain.RecommendationRequest) (*domain.RecommendationResponse, error)
}

// IndexManager exposes the similarity index to operators
type IndexManager interface {
	Rebuild(ctx context.Context) error
	Stats() usecase.IndexStats
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	recommendations RecommendationService
	index           IndexManager
	logger          *zap.Logger
}

// NewHandler creates a new HTTP handler. Nil services answer 501.
func NewHandler(recommendations RecommendationService, index IndexManager, log *zap.Logger) *Handler {
	return &Handler{
		recommendations: recommendations,
		index:           index,
		logger:          logger.OrNop(log),
	}
}

// HealthCheck returns the health status of the API and the index state
func (h *Handler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "mommyshops-backend",
		"version": "1.0.0",
	}
	if h.index != nil {
		body["index"] = h.index.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// GenerateRecommendations handles POST /api/v1/recommendations
func (h *Handler) GenerateRecommendations(c *gin.Context) {
	if h.recommendations == nil {
		respondError(c, http.StatusNotImplemented, "NOT_CONFIGURED", "Recommendation service not configured")
		return
	}

	var req domain.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	if err := validateRecommendationRequest(&req); err != nil {
		h.handleError(c, err)
		return
	}

	resp, err := h.recommendations.GenerateRecommendations(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RebuildCatalogIndex handles POST /api/v1/catalog/rebuild
func (h *Handler) RebuildCatalogIndex(c *gin.Context) {
	if h.index == nil {
		respondError(c, http.StatusNotImplemented, "NOT_CONFIGURED", "Similarity index not configured")
		return
	}

	if err := h.index.Rebuild(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "rebuilt",
		"index":  h.index.Stats(),
	})
}

func validateRecommendationRequest(req *domain.RecommendationRequest) error {
	if len(req.Ingredients) > maxIngredients {
		return fmt.Errorf("%w: at most %d ingredients allowed", domain.ErrInvalidRequest, maxIngredients)
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		return fmt.Errorf("%w: top_k must be between 0 and %d", domain.ErrInvalidRequest, maxTopK)
	}
	return nil
}

// handleError maps domain errors onto HTTP responses
func (h *Handler) handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrRecommendationUnavailable):
		respondError(c, http.StatusServiceUnavailable, "RECOMMENDATION_UNAVAILABLE", "Recommendations are temporarily unavailable")
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}
