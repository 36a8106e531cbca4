package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

// Recommendation reason fragments
const (
	reasonDefault = "Compatibilidad alta"
	reasonNoRisky = "Sin ingredientes riesgosos"
)

// RecommenderConfig holds configuration for the substitute recommender
type RecommenderConfig struct {
	MinEcoScore float64
	TopK        int
}

// Recommender finds substitute products by vector similarity under
// safety constraints
type Recommender struct {
	index       *IndexCache
	normalizer  *Normalizer
	minEcoScore float64
	topK        int
	logger      *zap.Logger
}

// NewRecommender creates a recommender over the given index
func NewRecommender(index *IndexCache, normalizer *Normalizer, config RecommenderConfig, log *zap.Logger) *Recommender {
	minEco := config.MinEcoScore
	if minEco == 0 {
		minEco = 70.0
	}
	topK := config.TopK
	if topK <= 0 {
		topK = 3
	}

	return &Recommender{
		index:       index,
		normalizer:  normalizer,
		minEcoScore: minEco,
		topK:        topK,
		logger:      logger.OrNop(log),
	}
}

// scoredRow pairs an index row with its similarity to the query
type scoredRow struct {
	row   int
	score float64
}

// SuggestSubstitutes returns up to TopK catalog products similar to the query
// that pass every safety filter, ordered by similarity.
func (r *Recommender) SuggestSubstitutes(ctx context.Context, query domain.SubstituteQuery) ([]domain.RecommendationResult, error) {
	if err := r.index.EnsureLoaded(ctx, false); err != nil {
		if r.index.Snapshot() == nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRecommendationUnavailable, err)
		}
		r.logger.Warn("Index refresh failed, using previous snapshot", zap.Error(err))
	}

	safe := r.normalizer.CanonicalizeList(query.Ingredients)
	target := strings.TrimSpace(query.TargetProductName)
	if len(safe) == 0 && target == "" {
		return []domain.RecommendationResult{}, nil
	}

	snap := r.index.Snapshot()
	if snap.Empty() {
		return []domain.RecommendationResult{}, nil
	}

	queryText := strings.ToLower(strings.TrimSpace(strings.Join(safe, " ") + " " + target))
	vector, err := r.index.EncodeQuery(ctx, snap, queryText)
	if err != nil {
		r.logger.Warn("Query encoding failed, returning no substitutes",
			zap.String("strategy", string(snap.Strategy)),
			zap.Error(err),
		)
		return []domain.RecommendationResult{}, nil
	}

	scored := make([]scoredRow, len(snap.Rows))
	for i, row := range snap.Rows {
		scored[i] = scoredRow{row: i, score: CosineSimilarity(vector, row)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	topK := query.TopK
	if topK <= 0 {
		topK = r.topK
	}

	excluded := r.normalizer.NormalizedSet(query.ExcludedIngredients)
	safeSet := make(map[string]struct{}, len(safe))
	for _, s := range safe {
		safeSet[s] = struct{}{}
	}
	requireOverlap := len(query.UserConditions) > 0 && len(safeSet) > 0

	results := make([]domain.RecommendationResult, 0, topK)
	for _, s := range scored {
		if len(results) >= topK {
			break
		}
		meta := snap.Metadata[s.row]

		if s.score <= 0 {
			continue
		}
		if target != "" && strings.EqualFold(strings.TrimSpace(meta.Name), target) {
			continue
		}
		if meta.EcoScore != nil && *meta.EcoScore < r.minEcoScore {
			continue
		}
		if !meta.RiskLevel.IsAcceptable() {
			continue
		}
		if intersects(meta.IngredientSet, excluded) {
			continue
		}
		if requireOverlap && len(meta.IngredientSet) > 0 && !intersects(meta.IngredientSet, safeSet) {
			continue
		}

		results = append(results, domain.RecommendationResult{
			ProductID:     meta.ID,
			Name:          meta.Name,
			Brand:         meta.Brand,
			EcoScore:      meta.EcoScore,
			RiskLevel:     meta.RiskLevel,
			Similarity:    s.score,
			Reason:        buildReason(meta.EcoScore, meta.RiskLevel, len(excluded) > 0, meta.Category),
			Category:      meta.Category,
			RatingAverage: meta.RatingAverage,
			RatingCount:   meta.RatingCount,
		})
	}

	r.logger.Debug("Substitutes ranked",
		zap.Int("rows", len(snap.Rows)),
		zap.Int("results", len(results)),
		zap.String("strategy", string(snap.Strategy)),
	)
	return results, nil
}

// buildReason explains why a product was recommended
func buildReason(ecoScore *float64, risk domain.RiskLevel, excludedRisky bool, category string) string {
	var parts []string
	if ecoScore != nil {
		parts = append(parts, fmt.Sprintf("Eco-score %.0f", *ecoScore))
	}
	if risk != "" {
		parts = append(parts, "Riesgo "+string(risk))
	}
	if excludedRisky {
		parts = append(parts, reasonNoRisky)
	}
	if category != "" {
		parts = append(parts, "Categoría "+category)
	}
	if len(parts) == 0 {
		return reasonDefault
	}
	return strings.Join(parts, ", ")
}

func intersects(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
