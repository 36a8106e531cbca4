package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mommyshops/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string]interface{}
	getError error
	setError error
	setTTL   time.Duration
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	m.setTTL = ttl
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockCatalogStore is an in-memory domain.CatalogStore keyed by lookup key
type MockCatalogStore struct {
	mu          sync.Mutex
	products    []domain.Product
	upsertError error
	queryError  error
	upserts     int
	queries     int32
	queryDelay  time.Duration
}

func NewMockCatalogStore(products ...domain.Product) *MockCatalogStore {
	m := &MockCatalogStore{}
	for i, p := range products {
		if p.ID == 0 {
			p.ID = uint(i + 1)
		}
		m.products = append(m.products, p)
	}
	return m
}

func (m *MockCatalogStore) Upsert(ctx context.Context, candidates []domain.CatalogCandidate) ([]domain.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertError != nil {
		return nil, m.upsertError
	}

	results := make([]domain.UpsertResult, 0, len(candidates))
	for _, c := range candidates {
		found := -1
		for i, p := range m.products {
			if domain.LookupKey(p.Name, p.Brand) == c.LookupKey() {
				found = i
				break
			}
		}
		if found >= 0 {
			results = append(results, domain.UpsertResult{Product: m.products[found]})
			continue
		}
		p := domain.Product{
			ID:          uint(len(m.products) + 1),
			Name:        c.Name,
			Brand:       c.Brand,
			Ingredients: c.Ingredients,
			Category:    c.Category,
			EcoScore:    c.EcoScore,
			RiskLevel:   c.RiskLevel,
		}
		m.products = append(m.products, p)
		results = append(results, domain.UpsertResult{Product: p, Created: true})
	}
	return results, nil
}

func (m *MockCatalogStore) QueryAll(ctx context.Context) ([]domain.Product, error) {
	atomic.AddInt32(&m.queries, 1)
	if m.queryDelay > 0 {
		time.Sleep(m.queryDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryError != nil {
		return nil, m.queryError
	}
	out := make([]domain.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

func (m *MockCatalogStore) QueryCount() int {
	return int(atomic.LoadInt32(&m.queries))
}

// MockEmbedder produces deterministic bag-of-words vectors over a fixed vocabulary
type MockEmbedder struct {
	mu        sync.Mutex
	vocab     []string
	err       error
	failAfter int
	calls     int
}

func NewMockEmbedder(vocab ...string) *MockEmbedder {
	return &MockEmbedder{vocab: vocab, failAfter: -1}
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.failAfter >= 0 && m.calls > m.failAfter {
		return nil, errors.New("embedding service down")
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(m.vocab))
		for j, word := range m.vocab {
			vec[j] = float64(strings.Count(strings.ToLower(text), word))
		}
		out[i] = vec
	}
	return out, nil
}

// MockIngredientProvider is a mock implementation of domain.IngredientDataProvider
type MockIngredientProvider struct {
	mu         sync.Mutex
	local      map[string]*domain.IngredientData
	remote     map[string]*domain.IngredientData
	fetchError error
	fetches    []string
}

func NewMockIngredientProvider() *MockIngredientProvider {
	return &MockIngredientProvider{
		local:  make(map[string]*domain.IngredientData),
		remote: make(map[string]*domain.IngredientData),
	}
}

func (m *MockIngredientProvider) Get(name string) *domain.IngredientData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.local[name]
}

func (m *MockIngredientProvider) Fetch(ctx context.Context, name string) (*domain.IngredientData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, name)
	if m.fetchError != nil {
		return nil, m.fetchError
	}
	if data, ok := m.remote[name]; ok {
		return data, nil
	}
	return nil, domain.ErrIngredientNotFound
}

func (m *MockIngredientProvider) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches)
}

// MockProductSearcher is a mock implementation of domain.ProductSearcher
type MockProductSearcher struct {
	mu      sync.Mutex
	results map[string][]domain.RawProduct
	errors  map[string]error
	calls   []string
	limits  []int
}

func NewMockProductSearcher() *MockProductSearcher {
	return &MockProductSearcher{
		results: make(map[string][]domain.RawProduct),
		errors:  make(map[string]error),
	}
}

func (m *MockProductSearcher) Search(ctx context.Context, ingredient string, limit int) ([]domain.RawProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ingredient)
	m.limits = append(m.limits, limit)
	if err, ok := m.errors[ingredient]; ok {
		return nil, err
	}
	return m.results[ingredient], nil
}

func (m *MockProductSearcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockScraper is a mock implementation of domain.Scraper
type MockScraper struct {
	mu      sync.Mutex
	results map[string]*domain.ScrapeResult
	err     error
	urls    []string
}

func (m *MockScraper) Scrape(ctx context.Context, url string) (*domain.ScrapeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	if m.err != nil {
		return nil, m.err
	}
	if r, ok := m.results[url]; ok {
		return r, nil
	}
	return nil, domain.ErrScrapeFailure
}
