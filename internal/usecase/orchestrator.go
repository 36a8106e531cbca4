package usecase

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const reasonExternalMatch = "Coincidencia externa"

// CatalogExpander grows the catalog around query ingredients
type CatalogExpander interface {
	EnsureCatalog(ctx context.Context, queryIngredients, userConditions []string, maxProducts int) (bool, []domain.CatalogCandidate, error)
}

// IndexLoader keeps the similarity index current
type IndexLoader interface {
	EnsureLoaded(ctx context.Context, force bool) error
	Rebuild(ctx context.Context) error
}

// SubstituteFinder ranks substitute products
type SubstituteFinder interface {
	SuggestSubstitutes(ctx context.Context, query domain.SubstituteQuery) ([]domain.RecommendationResult, error)
}

// OrchestratorConfig holds configuration for the recommendation orchestrator
type OrchestratorConfig struct {
	TopK          int
	MaxProducts   int
	MinEcoScore   float64
	Workers       int
	LookupWorkers int
	LookupTimeout time.Duration
}

// Orchestrator runs the full recommendation pipeline: classify ingredients,
// expand the catalog, refresh the index, rank substitutes, fall back to raw
// catalog matches.
type Orchestrator struct {
	ingredients domain.IngredientDataProvider
	expander    CatalogExpander
	index       IndexLoader
	finder      SubstituteFinder
	normalizer  *Normalizer
	pool        *semaphore.Weighted
	config      OrchestratorConfig
	logger      *zap.Logger
}

// NewOrchestrator wires the pipeline components
func NewOrchestrator(
	ingredients domain.IngredientDataProvider,
	expander CatalogExpander,
	index IndexLoader,
	finder SubstituteFinder,
	normalizer *Normalizer,
	config OrchestratorConfig,
	log *zap.Logger,
) *Orchestrator {
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if config.MaxProducts <= 0 {
		config.MaxProducts = defaultMaxProducts
	}
	if config.MinEcoScore == 0 {
		config.MinEcoScore = 70.0
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.LookupWorkers <= 0 {
		config.LookupWorkers = defaultLookupWorkers
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = 10 * time.Second
	}

	return &Orchestrator{
		ingredients: ingredients,
		expander:    expander,
		index:       index,
		finder:      finder,
		normalizer:  normalizer,
		pool:        semaphore.NewWeighted(int64(config.Workers)),
		config:      config,
		logger:      logger.OrNop(log),
	}
}

// GenerateRecommendations analyzes the ingredients and recommends substitute
// products. Partial failures degrade the result instead of failing the call.
func (o *Orchestrator) GenerateRecommendations(ctx context.Context, req domain.RecommendationRequest) (*domain.RecommendationResponse, error) {
	response := &domain.RecommendationResponse{
		Analysis:        []domain.IngredientAssessment{},
		Substitutes:     []domain.DirectSubstitute{},
		Recommendations: []domain.RecommendationResult{},
	}

	ingredients := o.normalizer.CanonicalizeList(req.Ingredients)
	if len(ingredients) == 0 {
		return response, nil
	}

	topK := req.TopK
	if topK <= 0 {
		topK = o.config.TopK
	}

	response.Analysis = o.classify(ctx, ingredients)

	var safe, risky []string
	for _, a := range response.Analysis {
		if a.Safe {
			safe = append(safe, a.Ingredient)
			continue
		}
		risky = append(risky, a.Ingredient)
		response.Substitutes = append(response.Substitutes, domain.DirectSubstitute{
			Original:   a.Ingredient,
			Substitute: substituteFor(a.Ingredient),
		})
	}

	expansionQuery := safe
	if len(expansionQuery) == 0 {
		expansionQuery = risky
	}

	updated, candidates, err := o.expander.EnsureCatalog(ctx, expansionQuery, req.UserConditions, o.config.MaxProducts)
	if err != nil {
		o.logger.Warn("Catalog expansion failed, continuing with existing catalog", zap.Error(err))
	}

	err = o.runPooled(ctx, func() error {
		if updated {
			return o.index.Rebuild(ctx)
		}
		return o.index.EnsureLoaded(ctx, false)
	})
	if err != nil {
		o.logger.Warn("Index refresh failed", zap.Bool("forced", updated), zap.Error(err))
	}

	var recommendations []domain.RecommendationResult
	err = o.runPooled(ctx, func() error {
		var findErr error
		recommendations, findErr = o.finder.SuggestSubstitutes(ctx, domain.SubstituteQuery{
			Ingredients:         safe,
			ExcludedIngredients: risky,
			UserConditions:      req.UserConditions,
			TopK:                topK,
		})
		return findErr
	})
	if err != nil {
		o.logger.Warn("Substitute search failed, using catalog fallback", zap.Error(err))
	}

	if len(recommendations) == 0 {
		recommendations = fallbackRecommendations(candidates, topK)
	}
	response.Recommendations = recommendations

	o.logger.Info("Recommendations generated",
		zap.Int("ingredients", len(ingredients)),
		zap.Int("risky", len(risky)),
		zap.Int("recommendations", len(recommendations)),
		zap.Bool("catalog_updated", updated),
	)
	return response, nil
}

// classify assesses ingredients concurrently, at most LookupWorkers at a
// time, keeping input order. Lookup failures are treated as risky with
// unknown level.
func (o *Orchestrator) classify(ctx context.Context, ingredients []string) []domain.IngredientAssessment {
	assessments := make([]domain.IngredientAssessment, len(ingredients))

	var g errgroup.Group
	g.SetLimit(o.config.LookupWorkers)
	for i, ingredient := range ingredients {
		i, ingredient := i, ingredient
		g.Go(func() error {
			assessments[i] = o.assess(ctx, ingredient)
			return nil
		})
	}
	_ = g.Wait()

	return assessments
}

func (o *Orchestrator) assess(ctx context.Context, ingredient string) domain.IngredientAssessment {
	assessment := domain.IngredientAssessment{
		Ingredient: ingredient,
		RiskLevel:  domain.RiskUnknown,
	}

	data := o.ingredients.Get(ingredient)
	if data == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, o.config.LookupTimeout)
		defer cancel()

		fetched, err := o.ingredients.Fetch(fetchCtx, ingredient)
		if err != nil {
			o.logger.Warn("Ingredient classification failed, treating as risky",
				zap.String("ingredient", ingredient),
				zap.Error(err),
			)
			return assessment
		}
		data = fetched
	}
	if data == nil {
		return assessment
	}

	assessment.EcoScore = data.EcoScore
	assessment.RiskLevel = data.RiskLevel
	assessment.Benefits = data.Benefits
	assessment.RisksDetailed = data.RisksDetailed
	assessment.Sources = data.Sources
	assessment.Safe = data.RiskLevel.IsAcceptable() &&
		(data.EcoScore == nil || *data.EcoScore >= o.config.MinEcoScore)
	return assessment
}

// runPooled runs a CPU-bound step on the bounded worker pool
func (o *Orchestrator) runPooled(ctx context.Context, fn func() error) error {
	if err := o.pool.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.pool.Release(1)
	return fn()
}

// fallbackRecommendations ranks raw expansion candidates by match score
func fallbackRecommendations(candidates []domain.CatalogCandidate, topK int) []domain.RecommendationResult {
	ranked := make([]domain.CatalogCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]domain.RecommendationResult, 0, len(ranked))
	for _, c := range ranked {
		reason := c.Reason
		if reason == "" {
			reason = reasonExternalMatch
		}
		results = append(results, domain.RecommendationResult{
			ProductID:     c.ProductID,
			Name:          c.Name,
			Brand:         c.Brand,
			EcoScore:      c.EcoScore,
			RiskLevel:     c.RiskLevel,
			Similarity:    c.MatchScore,
			Reason:        reason,
			Category:      c.Category,
			RatingAverage: c.RatingAverage,
			RatingCount:   c.RatingCount,
		})
	}
	return results
}
