package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const (
	catalogCacheKeyPrefix  = "catalog:"
	minPerIngredientLimit  = 2
	defaultMaxProducts     = 20
	defaultEnrichmentLimit = 3
	metricsIngredientLimit = 8
	defaultLookupWorkers   = 8
)

// ecoGrades maps letter eco grades onto the 0-100 scale
var ecoGrades = map[string]float64{
	"a": 90, "b": 75, "c": 55, "d": 35, "e": 15,
}

// ExpansionConfig holds configuration for the catalog expansion service
type ExpansionConfig struct {
	CacheTTL        time.Duration
	SearchTimeout   time.Duration
	LookupTimeout   time.Duration
	ScrapeTimeout   time.Duration
	EnrichmentLimit int
	LookupWorkers   int
}

// ExpansionService grows the catalog from an external product database
// around a set of query ingredients
type ExpansionService struct {
	cache       domain.CacheRepository
	searcher    domain.ProductSearcher
	scraper     domain.Scraper
	ingredients domain.IngredientDataProvider
	store       domain.CatalogStore
	normalizer  *Normalizer
	config      ExpansionConfig
	logger      *zap.Logger
}

// NewExpansionService creates an expansion service. scraper may be nil, which
// disables enrichment.
func NewExpansionService(
	cache domain.CacheRepository,
	searcher domain.ProductSearcher,
	scraper domain.Scraper,
	ingredients domain.IngredientDataProvider,
	store domain.CatalogStore,
	normalizer *Normalizer,
	config ExpansionConfig,
	log *zap.Logger,
) *ExpansionService {
	if config.CacheTTL == 0 {
		config.CacheTTL = 6 * time.Hour
	}
	if config.SearchTimeout == 0 {
		config.SearchTimeout = 15 * time.Second
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = 10 * time.Second
	}
	if config.ScrapeTimeout == 0 {
		config.ScrapeTimeout = 30 * time.Second
	}
	if config.EnrichmentLimit == 0 {
		config.EnrichmentLimit = defaultEnrichmentLimit
	}
	if config.LookupWorkers <= 0 {
		config.LookupWorkers = defaultLookupWorkers
	}

	return &ExpansionService{
		cache:       cache,
		searcher:    searcher,
		scraper:     scraper,
		ingredients: ingredients,
		store:       store,
		normalizer:  normalizer,
		config:      config,
		logger:      logger.OrNop(log),
	}
}

// EnsureCatalog searches products for the query ingredients, scores them and
// upserts them into the catalog. updated reports whether any row was created.
// Flow: normalize -> cache -> parallel search -> merge -> enrich -> metrics -> persist -> cache
func (s *ExpansionService) EnsureCatalog(
	ctx context.Context,
	queryIngredients []string,
	userConditions []string,
	maxProducts int,
) (bool, []domain.CatalogCandidate, error) {
	query := s.normalizer.CanonicalizeList(queryIngredients)
	if len(query) == 0 {
		return false, nil, nil
	}

	cacheKey := catalogCacheKey(query)
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		s.logger.Debug("Catalog expansion cache hit",
			zap.String("key", cacheKey),
			zap.Int("candidates", len(cached)),
		)
		return false, cached, nil
	}

	if maxProducts <= 0 {
		maxProducts = defaultMaxProducts
	}
	perIngredient := maxProducts / len(query)
	if perIngredient < minPerIngredientLimit {
		perIngredient = minPerIngredientLimit
	}

	candidates := s.search(ctx, query, perIngredient)
	if s.scraper != nil {
		s.enrich(ctx, candidates)
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if len(c.Ingredients) > 0 {
			kept = append(kept, c)
		}
	}
	candidates = kept

	if len(candidates) == 0 {
		s.logger.Info("Catalog expansion found no usable products",
			zap.Strings("ingredients", query),
			zap.Int("user_conditions", len(userConditions)),
		)
		return false, []domain.CatalogCandidate{}, nil
	}

	s.computeMetrics(ctx, candidates, query)

	results, err := s.store.Upsert(ctx, candidates)
	if err != nil {
		return false, nil, err
	}

	updated := false
	for i := range candidates {
		if i >= len(results) {
			break
		}
		candidates[i].ProductID = results[i].Product.ID
		if results[i].Created {
			updated = true
		}
	}

	if err := s.setInCache(ctx, cacheKey, candidates); err != nil {
		s.logger.Warn("Failed to cache catalog expansion", zap.String("key", cacheKey), zap.Error(err))
	}

	s.logger.Info("Catalog expanded",
		zap.Strings("ingredients", query),
		zap.Int("candidates", len(candidates)),
		zap.Bool("updated", updated),
	)
	return updated, candidates, nil
}

// search queries every ingredient concurrently and merges the hits in
// ingredient order, deduplicating by lookup key
func (s *ExpansionService) search(ctx context.Context, query []string, limit int) []domain.CatalogCandidate {
	slots := make([][]domain.RawProduct, len(query))

	var g errgroup.Group
	for i, ingredient := range query {
		i, ingredient := i, ingredient
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(ctx, s.config.SearchTimeout)
			defer cancel()

			raws, err := s.searcher.Search(searchCtx, ingredient, limit)
			if err != nil {
				s.logger.Warn("Product search failed",
					zap.String("ingredient", ingredient),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = raws
			return nil
		})
	}
	_ = g.Wait()

	var merged []domain.CatalogCandidate
	index := make(map[string]int)
	for _, raws := range slots {
		for _, raw := range raws {
			candidate := candidateFromRaw(raw)
			if strings.TrimSpace(candidate.Name) == "" {
				continue
			}
			key := candidate.LookupKey()
			if pos, ok := index[key]; ok {
				s.mergeCandidate(&merged[pos], candidate)
				continue
			}
			index[key] = len(merged)
			merged = append(merged, candidate)
		}
	}
	return merged
}

// enrich scrapes up to EnrichmentLimit candidates that expose a source URL
func (s *ExpansionService) enrich(ctx context.Context, candidates []domain.CatalogCandidate) {
	var g errgroup.Group
	enriched := 0
	for i := range candidates {
		if enriched >= s.config.EnrichmentLimit {
			break
		}
		if candidates[i].SourceURL == "" {
			continue
		}
		enriched++

		c := &candidates[i]
		g.Go(func() error {
			scrapeCtx, cancel := context.WithTimeout(ctx, s.config.ScrapeTimeout)
			defer cancel()

			result, err := s.scraper.Scrape(scrapeCtx, c.SourceURL)
			if err != nil {
				s.logger.Warn("Enrichment scrape failed",
					zap.String("url", c.SourceURL),
					zap.Error(err),
				)
				return nil
			}
			c.Ingredients = s.mergeIngredients(c.Ingredients, result.Ingredients)
			if c.Category == "" {
				c.Category = strings.TrimSpace(result.Category)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// computeMetrics fills eco-score, risk level and match score for every candidate
func (s *ExpansionService) computeMetrics(ctx context.Context, candidates []domain.CatalogCandidate, query []string) {
	lookup := newIngredientLookup(s.ingredients, s.config.LookupTimeout, s.logger)

	querySet := make(map[string]struct{}, len(query))
	for _, q := range query {
		querySet[q] = struct{}{}
	}

	var g errgroup.Group
	g.SetLimit(s.config.LookupWorkers)
	for i := range candidates {
		c := &candidates[i]
		g.Go(func() error {
			normalized := s.normalizer.CanonicalizeList(c.Ingredients)

			checked := normalized
			if len(checked) > metricsIngredientLimit {
				checked = checked[:metricsIngredientLimit]
			}

			var ecoSum float64
			var ecoCount int
			var risks []domain.RiskLevel
			for _, ingredient := range checked {
				data := lookup.get(ctx, ingredient)
				if data == nil {
					continue
				}
				if data.EcoScore != nil {
					ecoSum += *data.EcoScore
					ecoCount++
				}
				risks = append(risks, data.RiskLevel)
			}

			if ecoCount > 0 {
				c.EcoScore = domain.Float64Ptr(ecoSum / float64(ecoCount))
			}
			if risk := domain.HighestRisk(risks...); risk != "" {
				c.RiskLevel = risk
			}

			matched := 0
			for _, ingredient := range normalized {
				if _, ok := querySet[ingredient]; ok {
					matched++
				}
			}
			c.MatchScore = float64(matched) / float64(len(querySet))
			return nil
		})
	}
	_ = g.Wait()
}

// mergeCandidate folds a duplicate hit into an existing candidate
func (s *ExpansionService) mergeCandidate(dst *domain.CatalogCandidate, src domain.CatalogCandidate) {
	dst.Ingredients = s.mergeIngredients(dst.Ingredients, src.Ingredients)
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.EcoScore == nil {
		dst.EcoScore = src.EcoScore
	}
	if dst.SourceURL == "" {
		dst.SourceURL = src.SourceURL
	}
}

// mergeIngredients unions two lists by normalized form, keeping the first
// spelling seen
func (s *ExpansionService) mergeIngredients(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, item := range list {
			item = strings.TrimSpace(item)
			norm := s.normalizer.Normalize(item)
			if norm == "" {
				continue
			}
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// getFromCache returns a deep copy of cached candidates
func (s *ExpansionService) getFromCache(ctx context.Context, key string) ([]domain.CatalogCandidate, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, err
	}
	candidates, err := decodeCandidates(value)
	if err != nil {
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheMiss, err)
	}
	return candidates, nil
}

// setInCache stores candidates as a JSON document so later reads never share
// memory with the caller
func (s *ExpansionService) setInCache(ctx context.Context, key string, candidates []domain.CatalogCandidate) error {
	encoded, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, string(encoded), s.config.CacheTTL)
}

// decodeCandidates converts a cached value back into candidates. The JSON
// round trip also detaches the result from whatever the cache holds.
func decodeCandidates(value interface{}) ([]domain.CatalogCandidate, error) {
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = encoded
	}

	var candidates []domain.CatalogCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []domain.CatalogCandidate{}
	}
	return candidates, nil
}

// catalogCacheKey builds the cache key from the sorted normalized ingredients
func catalogCacheKey(normalized []string) string {
	sorted := append([]string(nil), normalized...)
	sort.Strings(sorted)
	return catalogCacheKeyPrefix + strings.Join(sorted, "|")
}

// candidateFromRaw maps a search hit onto a candidate
func candidateFromRaw(raw domain.RawProduct) domain.CatalogCandidate {
	return domain.CatalogCandidate{
		Name:        strings.TrimSpace(raw.Name),
		Brand:       strings.TrimSpace(raw.Brand),
		Ingredients: domain.ParseIngredientList(raw.IngredientsRaw),
		Category:    strings.TrimSpace(raw.Category),
		EcoScore:    parseEcoScore(raw.EcoScoreRaw),
		SourceURL:   strings.TrimSpace(raw.SourceURL),
	}
}

// parseEcoScore reads a numeric score or a letter grade; anything else is absent
func parseEcoScore(raw string) *float64 {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return nil
	}
	if grade, ok := ecoGrades[raw]; ok {
		return domain.Float64Ptr(grade)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return domain.Float64Ptr(v)
}

// ingredientLookup resolves ingredient data local-first, remote on miss,
// remembering answers for the duration of one expansion
type ingredientLookup struct {
	provider domain.IngredientDataProvider
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	memo map[string]*lookupEntry
}

type lookupEntry struct {
	once sync.Once
	data *domain.IngredientData
}

func newIngredientLookup(provider domain.IngredientDataProvider, timeout time.Duration, log *zap.Logger) *ingredientLookup {
	return &ingredientLookup{
		provider: provider,
		timeout:  timeout,
		logger:   log,
		memo:     make(map[string]*lookupEntry),
	}
}

func (l *ingredientLookup) get(ctx context.Context, name string) *domain.IngredientData {
	l.mu.Lock()
	entry, ok := l.memo[name]
	if !ok {
		entry = &lookupEntry{}
		l.memo[name] = entry
	}
	l.mu.Unlock()

	entry.once.Do(func() {
		if data := l.provider.Get(name); data != nil {
			entry.data = data
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()

		data, err := l.provider.Fetch(fetchCtx, name)
		if err != nil {
			if !errors.Is(err, domain.ErrIngredientNotFound) {
				l.logger.Warn("Ingredient lookup failed",
					zap.String("ingredient", name),
					zap.Error(err),
				)
			}
			return
		}
		entry.data = data
	})
	return entry.data
}
