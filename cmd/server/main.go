package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facturacion-service/internal/cache"
	"facturacion-service/internal/config"
	"facturacion-service/internal/database"
	"facturacion-service/internal/handlers"
	"facturacion-service/internal/middleware"
	"facturacion-service/internal/repository"
	"facturacion-service/internal/routes"
	"facturacion-service/internal/services"
	"facturacion-service/internal/ui"
	"facturacion-service/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.GinMode)
	ctx := context.Background()

	postgresDB, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer postgresDB.Close()

	if err := postgresDB.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	// Redis es opcional: sin él el catálogo se cachea sólo en memoria
	var (
		redisDB     *database.RedisDB
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" {
		redisDB, err = database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis no disponible, caché sólo en memoria", zap.Error(err))
			redisDB = nil
		} else {
			redisClient = redisDB.Client
			defer redisDB.Close()
		}
	}

	productRepo, err := repository.NewProductRepository(postgresDB.DB, logger)
	if err != nil {
		logger.Fatal("Failed to create product repository", zap.Error(err))
	}
	clienteRepo, err := repository.NewClienteRepository(postgresDB.DB)
	if err != nil {
		logger.Fatal("Failed to create cliente repository", zap.Error(err))
	}
	facturaRepo, err := repository.NewFacturaRepository(postgresDB.DB, logger)
	if err != nil {
		logger.Fatal("Failed to create factura repository", zap.Error(err))
	}

	catalogCache := cache.NewCatalogCache(redisClient, cfg.Catalogo.L1Size, cfg.Catalogo.CacheTTL, logger.Named("cache"))
	defer catalogCache.Close()

	catalogService := services.NewCatalogService(productRepo, clienteRepo, catalogCache, logger.Named("catalogo"))
	facturaService := services.NewFacturaService(facturaRepo, productRepo, clienteRepo, catalogService, logger.Named("facturas"))
	monitoringService := services.NewMonitoringService(logger, cfg, redisClient, postgresDB.DB, catalogCache)

	tmpl, err := view.Parse(ui.NewFormatter())
	if err != nil {
		logger.Fatal("Failed to parse templates", zap.Error(err))
	}

	monitoringHandler := handlers.NewMonitoringHandler(monitoringService, logger)

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(monitoringHandler.RecordRequestMiddleware())

	routes.SetupRoutes(router, routes.Handlers{
		Factura:    handlers.NewFacturaHandler(facturaService, catalogService, monitoringService, cfg.Server.ItemsPerPage, logger.Named("facturas")),
		Catalogo:   handlers.NewCatalogHandler(catalogService, logger.Named("catalogo")),
		Editor:     handlers.NewEditorHandler(catalogService, monitoringService, cfg.Editor.PingInterval, cfg.Editor.MaxSesiones, logger.Named("editor")),
		Monitoring: monitoringHandler,
		Health:     middleware.NewHealthChecker(postgresDB, redisDB, logger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		middleware.ServerInfo(cfg.Server.Port, redisClient != nil, logger)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

// newLogger usa la config de desarrollo en modo debug y la de producción en
// el resto, con el nivel de LOG_LEVEL.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Server.GinMode == gin.DebugMode {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
