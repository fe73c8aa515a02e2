package container

import (
	"context"
	"fmt"

	"bookcatalog/internal/config"
	bookRepo "bookcatalog/internal/domains/book/repository"
	bookService "bookcatalog/internal/domains/book/service"
	lookupRepo "bookcatalog/internal/domains/lookup/repository"
	lookupService "bookcatalog/internal/domains/lookup/service"
	infraCache "bookcatalog/internal/infrastructure/cache"
	"bookcatalog/internal/infrastructure/database"
	"bookcatalog/pkg/cache"
	"bookcatalog/pkg/logger"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container chứa toàn bộ dependencies của catalogctl.
// Thứ tự khởi tạo: Config -> Infrastructure -> Repositories -> Services.
type Container struct {
	// INFRASTRUCTURE LAYER
	Config *config.Config
	DB     *database.PostgresDB
	Cache  cache.Cache

	// REPOSITORY LAYER
	LookupRepo lookupRepo.RepositoryInterface
	BookRepo   bookRepo.RepositoryInterface

	// SERVICE LAYER
	LookupService lookupService.ServiceInterface
	BookService   bookService.ServiceInterface
	ImportService bookService.ImportServiceInterface
	ExportService bookService.ExportServiceInterface
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer kết nối database (và Redis nếu bật) rồi build dependency graph.
// Gọi Cleanup khi xong.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger.Debug("[CONTAINER] Initializing", map[string]interface{}{"env": cfg.App.Environment})

	c := &Container{Config: cfg}

	// ========================================
	// STEP 1: DATABASE
	// ========================================
	db := database.NewPostgresDB(cfg.LoadDatabaseConfig())
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db

	// ========================================
	// STEP 2: CACHE
	// ========================================
	// Redis failure không critical - fallback về NoopCache
	c.Cache = cache.NewNoopCache()
	if cfg.Redis.Enabled {
		rc := infraCache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Connect(ctx); err != nil {
			logger.Warn("[CONTAINER] Redis unavailable, caching disabled", map[string]interface{}{
				"host":  cfg.Redis.Host,
				"error": err.Error(),
			})
			_ = rc.Close()
		} else {
			c.Cache = rc
		}
	}

	c.initRepositories()
	c.initServices()

	logger.Debug("[CONTAINER] Initialized", nil)
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initRepositories() {
	pool := c.DB.Pool
	c.LookupRepo = lookupRepo.NewPostgresRepository(pool, c.Cache, c.Config.Redis.LookupTTL)
	c.BookRepo = bookRepo.NewPostgresRepository(pool, c.Cache, c.Config.Redis.BookTTL)
}

func (c *Container) initServices() {
	c.LookupService = lookupService.NewLookupService(c.LookupRepo)

	// Cross-domain: import resolve lookup names trước khi tạo book
	c.BookService = bookService.NewService(c.BookRepo, c.DB.Pool, bookService.Settings{
		DefaultLimit:        c.Config.Search.DefaultLimit,
		MaxLimit:            c.Config.Search.MaxLimit,
		SimilarityThreshold: c.Config.Search.SimilarityThreshold,
	})
	c.ImportService = bookService.NewImportService(c.BookService, c.LookupService, c.Config.Import.Concurrency)
	c.ExportService = bookService.NewExportService(c.LookupService)
}

// Cleanup đóng Redis và database pool
func (c *Container) Cleanup() {
	if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			logger.Warn("[CONTAINER] Failed to close Redis", map[string]interface{}{"error": err.Error()})
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logger.Warn("[CONTAINER] Failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}
}
