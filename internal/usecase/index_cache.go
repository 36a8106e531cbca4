package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

// IndexStrategy names how the index vectors were produced
type IndexStrategy string

const (
	StrategyEmbedding IndexStrategy = "embedding"
	StrategyTFIDF     IndexStrategy = "tfidf"
)

// IndexedProduct is one row of index metadata
type IndexedProduct struct {
	domain.Product
	IngredientSet map[string]struct{}
}

// SimilarityIndex is an immutable snapshot of the encoded catalog.
// Rows and Metadata are aligned by position.
type SimilarityIndex struct {
	Strategy   IndexStrategy
	BuiltAt    time.Time
	Rows       [][]float64
	Metadata   []IndexedProduct
	vectorizer *TFIDFVectorizer
}

// Empty reports whether the index has nothing to search
func (idx *SimilarityIndex) Empty() bool {
	return idx == nil || len(idx.Rows) == 0
}

// IndexStats summarizes the current index
type IndexStats struct {
	Strategy IndexStrategy `json:"strategy,omitempty"`
	Rows     int           `json:"rows"`
	BuiltAt  *time.Time    `json:"built_at,omitempty"`
	Fresh    bool          `json:"fresh"`
}

// IndexCacheConfig holds configuration for the index cache
type IndexCacheConfig struct {
	TTL time.Duration
}

// IndexCache owns the process-wide similarity index. Builds are serialized;
// readers work on immutable snapshots.
type IndexCache struct {
	store      domain.CatalogStore
	embedder   domain.Embedder
	normalizer *Normalizer
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time

	buildMu    sync.Mutex
	mu         sync.RWMutex
	index      *SimilarityIndex
	generation uint64
}

// NewIndexCache creates an index cache. embedder may be nil, in which case
// TF-IDF is always used.
func NewIndexCache(
	store domain.CatalogStore,
	embedder domain.Embedder,
	normalizer *Normalizer,
	config IndexCacheConfig,
	log *zap.Logger,
) *IndexCache {
	ttl := config.TTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	return &IndexCache{
		store:      store,
		embedder:   embedder,
		normalizer: normalizer,
		ttl:        ttl,
		logger:     logger.OrNop(log),
		now:        time.Now,
	}
}

// EnsureLoaded builds the index when it was never built, is older than the
// TTL, or force is set. Callers that waited on an in-flight build reuse its
// result.
func (c *IndexCache) EnsureLoaded(ctx context.Context, force bool) error {
	if !force && c.fresh() {
		return nil
	}

	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	c.mu.RLock()
	rebuiltMeanwhile := c.generation != generation
	c.mu.RUnlock()

	// Another caller finished a build while this one waited
	if rebuiltMeanwhile && (force || c.fresh()) {
		return nil
	}
	if !force && c.fresh() {
		return nil
	}

	return c.build(ctx)
}

// Rebuild forces a full rebuild
func (c *IndexCache) Rebuild(ctx context.Context) error {
	return c.EnsureLoaded(ctx, true)
}

// Snapshot returns the current index, or nil if none was built
func (c *IndexCache) Snapshot() *SimilarityIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Stats describes the current index
func (c *IndexCache) Stats() IndexStats {
	snap := c.Snapshot()
	if snap == nil {
		return IndexStats{}
	}
	builtAt := snap.BuiltAt
	return IndexStats{
		Strategy: snap.Strategy,
		Rows:     len(snap.Rows),
		BuiltAt:  &builtAt,
		Fresh:    c.now().Sub(snap.BuiltAt) < c.ttl,
	}
}

// EncodeQuery encodes text with the strategy the snapshot was built with
func (c *IndexCache) EncodeQuery(ctx context.Context, snap *SimilarityIndex, text string) ([]float64, error) {
	if snap.Empty() {
		return nil, nil
	}

	switch snap.Strategy {
	case StrategyEmbedding:
		if c.embedder == nil {
			return nil, domain.ErrEmbeddingUnavailable
		}
		vectors, err := c.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("%w: got %d vectors for 1 text", domain.ErrEmbeddingUnavailable, len(vectors))
		}
		return vectors[0], nil
	default:
		return snap.vectorizer.Transform(text), nil
	}
}

func (c *IndexCache) fresh() bool {
	snap := c.Snapshot()
	return snap != nil && c.now().Sub(snap.BuiltAt) < c.ttl
}

// build reads the whole catalog and replaces the index. Caller holds buildMu.
func (c *IndexCache) build(ctx context.Context) error {
	start := c.now()

	products, err := c.store.QueryAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	metadata := make([]IndexedProduct, 0, len(products))
	corpus := make([]string, 0, len(products))
	for _, p := range products {
		p.Ingredients = domain.ParseIngredientList(p.Ingredients)
		metadata = append(metadata, IndexedProduct{
			Product:       p,
			IngredientSet: c.normalizer.NormalizedSet(p.Ingredients),
		})
		corpus = append(corpus, productText(p))
	}

	next := &SimilarityIndex{BuiltAt: c.now()}
	if len(corpus) > 0 {
		rows, strategy, vectorizer, err := c.encodeCorpus(ctx, corpus)
		switch {
		case errors.Is(err, ErrEmptyVocabulary):
			c.logger.Warn("Catalog produced an empty vocabulary, index left empty",
				zap.Int("products", len(corpus)),
			)
		case err != nil:
			return err
		default:
			next.Strategy = strategy
			next.Rows = rows
			next.Metadata = metadata
			next.vectorizer = vectorizer
		}
	}

	c.mu.Lock()
	c.index = next
	c.generation++
	c.mu.Unlock()

	c.logger.Info("Similarity index rebuilt",
		zap.String("strategy", string(next.Strategy)),
		zap.Int("rows", len(next.Rows)),
		zap.Duration("duration", c.now().Sub(start)),
	)
	return nil
}

// encodeCorpus uses the embedder when available and falls back to TF-IDF
func (c *IndexCache) encodeCorpus(ctx context.Context, corpus []string) ([][]float64, IndexStrategy, *TFIDFVectorizer, error) {
	if c.embedder != nil {
		rows, err := c.embedder.Embed(ctx, corpus)
		if err == nil && len(rows) == len(corpus) {
			return rows, StrategyEmbedding, nil, nil
		}
		if err == nil {
			err = fmt.Errorf("got %d vectors for %d texts", len(rows), len(corpus))
		}
		c.logger.Warn("Embedding failed, falling back to TF-IDF", zap.Error(err))
	}

	vectorizer, rows, err := FitTFIDF(corpus)
	if err != nil {
		return nil, "", nil, err
	}
	return rows, StrategyTFIDF, vectorizer, nil
}

// productText composes the lowercase text a product is indexed by
func productText(p domain.Product) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.Name, p.Brand, p.Category, strings.Join(p.Ingredients, " ")} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
