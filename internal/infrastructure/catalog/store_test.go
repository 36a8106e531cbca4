package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mommyshops/backend/internal/domain"
)

type lowerNormalizer struct{}

func (lowerNormalizer) Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db, lowerNormalizer{}, nil)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}

func TestStore_UpsertCreatesRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	results, err := store.Upsert(ctx, []domain.CatalogCandidate{
		{
			Name:          "Calm Lotion",
			Brand:         "Verde",
			Ingredients:   []string{"Water", "Glycerin"},
			Category:      "skincare",
			EcoScore:      domain.Float64Ptr(80),
			RiskLevel:     domain.RiskSafe,
			ExtraMetadata: map[string]any{"source": "openbeautyfacts"},
		},
		{
			Name:        "Rose Toner",
			Brand:       "Petal",
			Ingredients: []string{"Rosa Damascena Water"},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Created)
	assert.True(t, results[1].Created)
	assert.NotZero(t, results[0].Product.ID)

	products, err := store.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "Calm Lotion", first.Name)
	assert.Equal(t, []string{"Water", "Glycerin"}, first.Ingredients)
	assert.Equal(t, "skincare", first.Category)
	require.NotNil(t, first.EcoScore)
	assert.Equal(t, 80.0, *first.EcoScore)
	assert.Equal(t, domain.RiskSafe, first.RiskLevel)
	assert.Equal(t, "openbeautyfacts", first.ExtraMetadata["source"])
	assert.Equal(t, 0.0, first.RatingAverage)
	assert.Equal(t, 0, first.RatingCount)

	assert.Equal(t, "Rose Toner", products[1].Name)
	assert.Nil(t, products[1].EcoScore)
	assert.Empty(t, products[1].Category)
}

func TestStore_UpsertMergesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []domain.CatalogCandidate{{
		Name:          "Calm Lotion",
		Brand:         "Verde",
		Ingredients:   []string{"Water", "Glycerin"},
		Category:      "skincare",
		EcoScore:      domain.Float64Ptr(80),
		ExtraMetadata: map[string]any{"source": "openbeautyfacts", "batch": "a"},
	}})
	require.NoError(t, err)

	results, err := store.Upsert(ctx, []domain.CatalogCandidate{{
		Name:          "CALM LOTION",
		Brand:         " verde ",
		Ingredients:   []string{"glycerin", "Aloe Vera"},
		ExtraMetadata: map[string]any{"batch": "b"},
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Created, "case-insensitive key matches the existing row")

	products, err := store.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Calm Lotion", p.Name, "original casing is kept")
	assert.Equal(t, []string{"Water", "Glycerin", "Aloe Vera"}, p.Ingredients)
	assert.Equal(t, "skincare", p.Category, "absent category leaves the stored value")
	require.NotNil(t, p.EcoScore)
	assert.Equal(t, 80.0, *p.EcoScore, "absent eco score leaves the stored value")
	assert.Equal(t, map[string]any{"source": "openbeautyfacts", "batch": "b"}, p.ExtraMetadata)
}

func TestStore_UpsertOverwritesPresentScalars(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []domain.CatalogCandidate{{
		Name: "Mist", Brand: "Aqua", Ingredients: []string{"water"}, EcoScore: domain.Float64Ptr(50),
	}})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, []domain.CatalogCandidate{{
		Name: "Mist", Brand: "Aqua", Ingredients: []string{"water"},
		EcoScore: domain.Float64Ptr(65), RiskLevel: domain.RiskLow, Category: "face",
	}})
	require.NoError(t, err)

	products, err := store.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 65.0, *products[0].EcoScore)
	assert.Equal(t, domain.RiskLow, products[0].RiskLevel)
	assert.Equal(t, "face", products[0].Category)
	assert.Equal(t, []string{"water"}, products[0].Ingredients)
}

func TestStore_UpsertDuplicateInBatch(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Upsert(context.Background(), []domain.CatalogCandidate{
		{Name: "Mist", Brand: "Aqua", Ingredients: []string{"water"}},
		{Name: "mist", Brand: "AQUA", Ingredients: []string{"aloe"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Created)
	assert.False(t, results[1].Created)
	assert.Equal(t, results[0].Product.ID, results[1].Product.ID)
	assert.Equal(t, []string{"water", "aloe"}, results[1].Product.Ingredients)
}

func TestStore_UpsertRollsBackBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []domain.CatalogCandidate{
		{Name: "Good", Brand: "Fine", Ingredients: []string{"water"}},
		{Name: "Empty", Brand: "Broken", Ingredients: nil},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCatalogWrite)

	products, err := store.QueryAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, products, "no row of a failed batch is committed")
}

func TestStore_UpsertEmptyBatch(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_QueryAllParsesLegacyIngredientText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.ensureSchema()
	require.NoError(t, store.db.Create(&productModel{
		Name:        "Old Soap",
		Brand:       "Legacy",
		LookupKey:   domain.LookupKey("Old Soap", "Legacy"),
		Ingredients: "water, sodium laurate; glycerin",
	}).Error)

	products, err := store.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, []string{"water", "sodium laurate", "glycerin"}, products[0].Ingredients)
}

func TestStore_Count(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Upsert(ctx, []domain.CatalogCandidate{
		{Name: "A", Ingredients: []string{"water"}},
		{Name: "B", Ingredients: []string{"water"}},
	})
	require.NoError(t, err)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Upsert(ctx, []domain.CatalogCandidate{
				{Name: "Same", Brand: "Brand", Ingredients: []string{"water", fmt.Sprintf("extract %d", i)}},
				{Name: fmt.Sprintf("Other %d", i), Brand: "B", Ingredients: []string{"glycerin"}},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(writers+1), n)

	products, err := store.QueryAll(ctx)
	require.NoError(t, err)
	for _, p := range products {
		if p.Name == "Same" {
			assert.Len(t, p.Ingredients, writers+1, "every writer's ingredients are merged")
		}
	}
}

func TestStore_SchemaSurvivesCancelledFirstCaller(t *testing.T) {
	store := newTestStore(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = store.QueryAll(cancelled)

	_, err := store.Upsert(context.Background(), []domain.CatalogCandidate{
		{Name: "Mist", Brand: "Aqua", Ingredients: []string{"water"}},
	})
	require.NoError(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"catalog.db", "catalog.db?_pragma=busy_timeout(5000)"},
		{"file:catalog.db?mode=rwc", "file:catalog.db?mode=rwc&_pragma=busy_timeout(5000)"},
		{"catalog.db?_pragma=busy_timeout(100)", "catalog.db?_pragma=busy_timeout(100)"},
	}

	for _, tt := range tests {
		if got := sqliteDSN(tt.dsn); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
