package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const (
	sqliteBusyTimeout = "_pragma=busy_timeout(5000)"
	migrateTimeout    = 30 * time.Second
)

// IngredientNormalizer maps an ingredient name onto its comparable form
type IngredientNormalizer interface {
	Normalize(raw string) string
}

// Open connects to the catalog database. driver is "postgres" or "sqlite".
// SQLite connections wait on locks and share a single connection, so
// concurrent writers queue instead of failing with SQLITE_BUSY.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyTimeout
	}
	return dsn + "?" + sqliteBusyTimeout
}

// Store is the gorm-backed catalog of products, keyed by case-insensitive
// (name, brand)
type Store struct {
	db          *gorm.DB
	normalizer  IngredientNormalizer
	logger      *zap.Logger
	migrateOnce sync.Once
}

// NewStore creates a catalog store on db
func NewStore(db *gorm.DB, normalizer IngredientNormalizer, log *zap.Logger) *Store {
	return &Store{
		db:         db,
		normalizer: normalizer,
		logger:     logger.OrNop(log),
	}
}

// Upsert writes every candidate in a single transaction. New lookup keys
// create rows; existing rows are merged. Any failure rolls back the batch.
func (s *Store) Upsert(ctx context.Context, candidates []domain.CatalogCandidate) ([]domain.UpsertResult, error) {
	s.ensureSchema()

	if len(candidates) == 0 {
		return []domain.UpsertResult{}, nil
	}

	results := make([]domain.UpsertResult, 0, len(candidates))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range candidates {
			result, err := s.upsertOne(tx, &candidates[i])
			if err != nil {
				return fmt.Errorf("upsert %q: %w", candidates[i].Name, err)
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogWrite, err)
	}

	return results, nil
}

// QueryAll returns every product in insertion order
func (s *Store) QueryAll(ctx context.Context) ([]domain.Product, error) {
	s.ensureSchema()

	var rows []productModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for i := range rows {
		products = append(products, rows[i].toDomain())
	}
	return products, nil
}

// Count returns the number of catalog products
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.ensureSchema()

	var n int64
	err := s.db.WithContext(ctx).Model(&productModel{}).Count(&n).Error
	return n, err
}

func (s *Store) upsertOne(tx *gorm.DB, c *domain.CatalogCandidate) (domain.UpsertResult, error) {
	key := c.LookupKey()

	var existing productModel
	err := tx.Where("lookup_key = ?", key).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row, err := s.newRow(c, key)
		if err != nil {
			return domain.UpsertResult{}, err
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lookup_key"}},
			DoNothing: true,
		}).Create(row)
		if res.Error != nil {
			return domain.UpsertResult{}, res.Error
		}
		if res.RowsAffected > 0 {
			return domain.UpsertResult{Product: row.toDomain(), Created: true}, nil
		}
		// Another writer committed the key first; merge into its row
		if err := tx.Where("lookup_key = ?", key).Take(&existing).Error; err != nil {
			return domain.UpsertResult{}, err
		}
	case err != nil:
		return domain.UpsertResult{}, err
	}

	if err := s.merge(&existing, c); err != nil {
		return domain.UpsertResult{}, err
	}
	if err := tx.Save(&existing).Error; err != nil {
		return domain.UpsertResult{}, err
	}
	return domain.UpsertResult{Product: existing.toDomain()}, nil
}

func (s *Store) newRow(c *domain.CatalogCandidate, key string) (*productModel, error) {
	ingredients := s.unionIngredients(nil, c.Ingredients)
	if len(ingredients) == 0 {
		return nil, errors.New("product has no ingredients")
	}

	encoded, err := encodeIngredients(ingredients)
	if err != nil {
		return nil, err
	}
	meta, err := encodeMetadata(c.ExtraMetadata)
	if err != nil {
		return nil, err
	}

	return &productModel{
		Name:          strings.TrimSpace(c.Name),
		Brand:         strings.TrimSpace(c.Brand),
		LookupKey:     key,
		Ingredients:   encoded,
		Category:      optionalString(c.Category),
		EcoScore:      c.EcoScore,
		RiskLevel:     optionalString(string(c.RiskLevel)),
		RatingAverage: c.RatingAverage,
		RatingCount:   c.RatingCount,
		ExtraMetadata: meta,
	}, nil
}

// merge folds an incoming candidate into an existing row. Scalars are only
// overwritten by present values; metadata keys from the candidate win.
func (s *Store) merge(row *productModel, c *domain.CatalogCandidate) error {
	ingredients := s.unionIngredients(domain.ParseIngredientList(row.Ingredients), c.Ingredients)
	encoded, err := encodeIngredients(ingredients)
	if err != nil {
		return err
	}
	row.Ingredients = encoded

	if c.Category != "" {
		row.Category = &c.Category
	}
	if c.EcoScore != nil {
		row.EcoScore = c.EcoScore
	}
	if c.RiskLevel != "" {
		risk := string(c.RiskLevel)
		row.RiskLevel = &risk
	}

	if len(c.ExtraMetadata) > 0 {
		merged := make(map[string]any)
		if len(row.ExtraMetadata) > 0 {
			if err := json.Unmarshal(row.ExtraMetadata, &merged); err != nil {
				s.logger.Warn("Replacing unreadable product metadata",
					zap.Uint("product_id", row.ID),
					zap.Error(err),
				)
				merged = make(map[string]any)
			}
		}
		for k, v := range c.ExtraMetadata {
			merged[k] = v
		}
		meta, err := encodeMetadata(merged)
		if err != nil {
			return err
		}
		row.ExtraMetadata = meta
	}
	return nil
}

// unionIngredients unions by normalized form, keeping the first spelling seen
func (s *Store) unionIngredients(existing, incoming []string) []string {
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

// ensureSchema migrates the products table once per process, detached from
// any request context. Failures are logged and the caller proceeds.
func (s *Store) ensureSchema() {
	s.migrateOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()
		if err := s.db.WithContext(ctx).AutoMigrate(&productModel{}); err != nil {
			s.logger.Error("Catalog schema migration failed", zap.Error(err))
			return
		}
		s.logger.Debug("Catalog schema migrated")
	})
}
