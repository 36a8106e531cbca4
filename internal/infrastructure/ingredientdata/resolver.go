package ingredientdata

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

// Source is one remote ingredient-data collaborator
type Source interface {
	Name() string
	Lookup(ctx context.Context, name string) (*domain.IngredientData, error)
}

// Resolver combines the local catalog with remote sources, in precedence
// order. Each field takes the first non-empty value across sources.
type Resolver struct {
	local   *Catalog
	sources []Source
	logger  *zap.Logger
}

// NewResolver creates a resolver. local may be nil.
func NewResolver(local *Catalog, sources []Source, log *zap.Logger) *Resolver {
	return &Resolver{
		local:   local,
		sources: sources,
		logger:  logger.OrNop(log),
	}
}

// Get is a local lookup; nil on a miss
func (r *Resolver) Get(name string) *domain.IngredientData {
	return r.local.Get(name)
}

// Fetch consults every remote source in order and reduces their answers.
// It fails with domain.ErrIngredientNotFound when no source knows the
// ingredient, or domain.ErrIngredientLookupFailure when every source failed.
func (r *Resolver) Fetch(ctx context.Context, name string) (*domain.IngredientData, error) {
	var (
		merged   *domain.IngredientData
		notFound int
		lastErr  error
	)
	if local := r.local.Get(name); local != nil {
		merged = local
	}

	for _, src := range r.sources {
		if merged != nil && complete(merged) {
			break
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		data, err := src.Lookup(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrIngredientNotFound) {
				notFound++
			} else {
				lastErr = err
				r.logger.Warn("Ingredient source failed",
					zap.String("source", src.Name()),
					zap.String("ingredient", name),
					zap.Error(err),
				)
			}
			continue
		}
		if data == nil {
			notFound++
			continue
		}
		if merged == nil {
			copied := *data
			merged = &copied
			continue
		}
		reduced := reduce(*merged, *data)
		merged = &reduced
	}

	if merged != nil {
		return merged, nil
	}
	if lastErr != nil && notFound == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrIngredientLookupFailure, lastErr)
	}
	return nil, domain.ErrIngredientNotFound
}

// reduce fills the empty fields of primary from secondary
func reduce(primary, secondary domain.IngredientData) domain.IngredientData {
	if primary.Name == "" {
		primary.Name = secondary.Name
	}
	if primary.EcoScore == nil && secondary.EcoScore != nil {
		v := *secondary.EcoScore
		primary.EcoScore = &v
	}
	if primary.RiskLevel == "" || primary.RiskLevel == domain.RiskUnknown {
		if secondary.RiskLevel != "" {
			primary.RiskLevel = secondary.RiskLevel
		}
	}
	if primary.Benefits == "" {
		primary.Benefits = secondary.Benefits
	}
	if primary.RisksDetailed == "" {
		primary.RisksDetailed = secondary.RisksDetailed
	}
	if primary.Sources == "" {
		primary.Sources = secondary.Sources
	}
	return primary
}

func complete(d *domain.IngredientData) bool {
	return d.EcoScore != nil &&
		d.RiskLevel != "" && d.RiskLevel != domain.RiskUnknown &&
		d.Benefits != "" && d.RisksDetailed != "" && d.Sources != ""
}
