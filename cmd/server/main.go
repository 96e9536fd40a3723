package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcelbook/internal/config"
	"github.com/stwalsh4118/parcelbook/internal/counties"
	"github.com/stwalsh4118/parcelbook/internal/database"
	"github.com/stwalsh4118/parcelbook/internal/handlers"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/metrics"
	"github.com/stwalsh4118/parcelbook/internal/middleware"
	"github.com/stwalsh4118/parcelbook/internal/numbering"
	"github.com/stwalsh4118/parcelbook/internal/parcelcache"
	"github.com/stwalsh4118/parcelbook/internal/repository"
	"github.com/stwalsh4118/parcelbook/internal/services"
	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

const (
	shutdownTimeout = 30 * time.Second
)

// routeHandlers groups everything the router dispatches to.
type routeHandlers struct {
	health    *handlers.HealthHandler
	counties  *handlers.CountyHandler
	parcels   *handlers.ParcelHandler
	props     *handlers.PropertyHandler
	saved     *handlers.SavedHandler
	skipTrace *handlers.SkipTraceHandler
}

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting parcelbook API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to apply schema", err, nil)
	}

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	catalog := counties.Default()

	// Repositories
	countyRepo := repository.NewCountyRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	savedRepo := repository.NewSavedRepository(db)

	// Display numbers: in-process lock unless Redis is configured
	allocator := numbering.NewAllocator(countyRepo, savedRepo, catalog, log)
	var locker numbering.Locker = numbering.NewLocalLocker()
	var lockPinger handlers.Pinger
	if rdb := numbering.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rdb != nil {
		defer rdb.Close()
		locker = numbering.NewRedisLocker(rdb, cfg.Numbering.LockTTL, log)
		lockPinger = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info("Using Redis numbering lock", map[string]interface{}{"addr": cfg.Redis.Addr})
	}

	// Boundary cache shared by every request
	policy := parcelcache.NewZoomPolicy(cfg.Map.FullDetailZoom, cfg.Map.MidZoom, cfg.Map.MidCap, cfg.Map.LowCap)
	cache := parcelcache.New(services.BoundaryLoader(propertyRepo), policy, log)

	// Services
	propertyService := services.NewPropertyService(propertyRepo, cache, catalog, log)
	savedService := services.NewSavedService(savedRepo, propertyRepo, allocator, locker, cfg.Numbering.MaxRetries, log)
	runner := skiptrace.NewDefaultRunner(skiptrace.Config{
		BatchDataBaseURL: cfg.SkipTrace.BatchDataBaseURL,
		BatchDataAPIKey:  cfg.SkipTrace.BatchDataAPIKey,
		EnformionBaseURL: cfg.SkipTrace.EnformionBaseURL,
		Enformion: skiptrace.EnformionCredentials{
			APName:     cfg.SkipTrace.EnformionAPName,
			APPassword: cfg.SkipTrace.EnformionAPPassword,
		},
		Timeout: cfg.SkipTrace.Timeout,
	}, log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(log, cfg.CORS.Origins, routeHandlers{
		health:    handlers.NewHealthHandler(db, lockPinger, cfg.Server.Env, len(catalog.All())),
		counties:  handlers.NewCountyHandler(catalog),
		parcels:   handlers.NewParcelHandler(propertyService),
		props:     handlers.NewPropertyHandler(propertyService),
		saved:     handlers.NewSavedHandler(savedService),
		skipTrace: handlers.NewSkipTraceHandler(runner, propertyService),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port":      cfg.Server.Port,
			"addr":      srv.Addr,
			"providers": runner.Providers(),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}

// newRouter registers middleware and routes.
func newRouter(log *logger.Logger, origins []string, h routeHandlers) *gin.Engine {
	router := gin.New()

	// Middleware order: RequestID -> Logger -> Recovery -> Metrics -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(origins))

	router.GET("/health", h.health.Health)
	router.GET("/health/ready", h.health.Ready)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", h.health.Info)

		v1.GET("/counties", h.counties.List)
		v1.GET("/counties/:id/next-number", h.saved.NextNumber)

		parcels := v1.Group("/parcels")
		{
			parcels.GET("/boundaries", h.parcels.Boundaries)
			parcels.GET("/at-point", h.parcels.AtPoint)
		}

		v1.GET("/properties", h.props.Properties)
		v1.GET("/properties/details", h.props.Details)
		v1.GET("/export", h.props.Export)

		saved := v1.Group("/saved")
		{
			saved.GET("", h.saved.List)
			saved.POST("", h.saved.Save)
			saved.DELETE("/:propertyId", h.saved.Unsave)
		}

		v1.POST("/skip-trace/:provider", h.skipTrace.Run)
	}

	return router
}
