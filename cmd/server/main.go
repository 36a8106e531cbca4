package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mommyshops/backend/config"
	httpDelivery "github.com/mommyshops/backend/internal/delivery/http"
	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/infrastructure/beautyfacts"
	"github.com/mommyshops/backend/internal/infrastructure/cache"
	"github.com/mommyshops/backend/internal/infrastructure/catalog"
	"github.com/mommyshops/backend/internal/infrastructure/embedding"
	"github.com/mommyshops/backend/internal/infrastructure/ingredientdata"
	"github.com/mommyshops/backend/internal/infrastructure/scraper"
	"github.com/mommyshops/backend/internal/pkg/logger"
	"github.com/mommyshops/backend/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Server.LogLevel, cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	zl.Info("Starting MommyShops Backend v1.0.0",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache_type", cfg.Cache.Type),
		zap.String("database_driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	normalizer := usecase.NewNormalizer(zl)
	if cfg.Normalizer.AliasesFile != "" {
		if err := normalizer.LoadAliases(cfg.Normalizer.AliasesFile); err != nil {
			return fmt.Errorf("failed to load ingredient aliases: %w", err)
		}
	}

	// Catalog store
	db, err := catalog.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	store := catalog.NewStore(db, normalizer, zl)

	// Expansion cache
	cacheRepo, closeCache, err := newCache(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeCache()

	// Ingredient data: local catalog first, then the remote API
	var localCatalog *ingredientdata.Catalog
	if cfg.IngredientCatalog.Path != "" {
		localCatalog, err = ingredientdata.LoadCatalog(cfg.IngredientCatalog.Path, normalizer)
		if err != nil {
			return err
		}
		zl.Info("Ingredient catalog loaded",
			zap.String("path", cfg.IngredientCatalog.Path),
			zap.Int("entries", localCatalog.Len()),
		)
	}
	var sources []ingredientdata.Source
	if cfg.IngredientAPI.BaseURL != "" {
		sources = append(sources, ingredientdata.NewRemoteSource(ingredientdata.RemoteConfig{
			BaseURL: cfg.IngredientAPI.BaseURL,
			APIKey:  cfg.IngredientAPI.APIKey,
			Timeout: cfg.IngredientAPI.Timeout,
		}, zl))
	} else {
		zl.Warn("Ingredient API not configured, unknown ingredients are treated as risky")
	}
	ingredients := ingredientdata.NewResolver(localCatalog, sources, zl)

	// External collaborators
	searcher := beautyfacts.NewClient(beautyfacts.Config{
		BaseURL:   cfg.BeautyFacts.BaseURL,
		RateLimit: cfg.BeautyFacts.RateLimit,
		Timeout:   cfg.BeautyFacts.Timeout,
	}, zl)

	var pageScraper domain.Scraper
	if cfg.Scraper.APIKey != "" {
		pageScraper = scraper.NewClient(scraper.Config{
			BaseURL: cfg.Scraper.BaseURL,
			APIKey:  cfg.Scraper.APIKey,
			Timeout: cfg.Scraper.Timeout,
		}, zl)
	} else {
		zl.Info("Scraper not configured, enrichment disabled")
	}

	var embedder domain.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder = embedding.NewClient(embedding.Config{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout,
		}, zl)
	} else {
		zl.Info("Embedding model not configured, using TF-IDF")
	}

	// Usecase layer
	index := usecase.NewIndexCache(store, embedder, normalizer, usecase.IndexCacheConfig{
		TTL: cfg.Index.TTL,
	}, zl)

	recommender := usecase.NewRecommender(index, normalizer, usecase.RecommenderConfig{
		MinEcoScore: cfg.Recommender.MinEcoScore,
		TopK:        cfg.Recommender.TopK,
	}, zl)

	expansion := usecase.NewExpansionService(cacheRepo, searcher, pageScraper, ingredients, store, normalizer,
		usecase.ExpansionConfig{
			CacheTTL:      cfg.Cache.CatalogTTL,
			SearchTimeout: cfg.BeautyFacts.Timeout,
			LookupTimeout: cfg.IngredientAPI.Timeout,
			ScrapeTimeout: cfg.Scraper.Timeout,
		}, zl)

	orchestrator := usecase.NewOrchestrator(ingredients, expansion, index, recommender, normalizer,
		usecase.OrchestratorConfig{
			TopK:          cfg.Recommender.TopK,
			MaxProducts:   cfg.Recommender.MaxProducts,
			MinEcoScore:   cfg.Recommender.MinEcoScore,
			Workers:       cfg.Recommender.Workers,
			LookupTimeout: cfg.IngredientAPI.Timeout,
		}, zl)

	// Warm the index; an empty or unreachable catalog is not fatal
	if err := index.EnsureLoaded(ctx, false); err != nil {
		zl.Warn("Initial index build failed", zap.Error(err))
	}

	handler := httpDelivery.NewHandler(orchestrator, index, zl)
	router := httpDelivery.SetupRouter(cfg, handler, zl)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache builds the expansion cache selected by configuration
func newCache(ctx context.Context, cfg *config.Config, zl *zap.Logger) (domain.CacheRepository, func(), error) {
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, zl)
		if err != nil {
			return nil, nil, err
		}
		zl.Info("Using Redis cache")
		return redisCache, func() { _ = redisCache.Close() }, nil
	}

	memoryCache := cache.NewMemoryCache(time.Minute, zl)
	zl.Info("Using in-memory cache", zap.Duration("catalog_ttl", cfg.Cache.CatalogTTL))
	return memoryCache, func() { _ = memoryCache.Close() }, nil
}
