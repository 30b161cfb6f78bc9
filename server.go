package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"expression_atlas/internal/blob"
	"expression_atlas/internal/config"
	"expression_atlas/internal/dataset"
	"expression_atlas/internal/export"
	"expression_atlas/internal/grouping"
	"expression_atlas/internal/logging"
	"expression_atlas/internal/metrics"
	"expression_atlas/internal/palette"
)

func main() {
	cfg, cfgErr := config.Load()
	logger := logging.New(cfg.LogLevel, os.Stderr)
	if cfgErr != nil {
		logger.Fatal().Err(cfgErr).Msg("invalid configuration")
	}

	ctx := context.Background()
	m := metrics.New()

	store, err := dataset.Open(ctx, cfg.Sources(), dataset.Options{
		CacheSize:     cfg.FeatureCacheSize,
		Logger:        logger,
		OnCacheLookup: m.ObserveCache,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load datasets")
	}
	defer store.Close()

	catalog := store.DefaultCatalog()
	if cfg.GeneCatalog != "" {
		if catalog, err = store.LoadCatalog(ctx, cfg.GeneCatalog); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.GeneCatalog).Msg("failed to load gene catalog")
		}
	}

	blobs, err := blob.Open(ctx, cfg.Export)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", string(cfg.Export.Driver)).Msg("failed to open export store")
	}

	a := &app{
		store:       store,
		catalog:     catalog,
		engine:      grouping.NewEngine(palette.Default()),
		exports:     export.NewService(blobs, logger),
		metrics:     m,
		logger:      logger,
		defaultGene: cfg.DefaultGene,
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(a)
	logger.Info().Str("addr", cfg.HTTPAddr).Int("genes", catalog.Len()).Str("export_driver", string(blobs.Driver())).Msg("serving")
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to run server")
	}
}

func newRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(a.logger), a.metrics.Middleware())

	// Disable CORS policy
	router.Use(corsMiddleware())

	router.GET("/healthcheck", healthCheckHandler)
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	router.GET("/datasets", a.datasetsHandler)
	router.GET("/genes", a.genesHandler)
	router.GET("/gene_suggestions", a.geneSuggestionsHandler)

	router.GET("/groups", a.groupsHandler)
	router.GET("/figure", a.figureHandler)

	router.GET("/download_data", a.downloadDataHandler)
	router.GET("/download_plot", a.downloadPlotHandler)

	router.POST("/exports", a.createExportHandler)
	router.GET("/exports/:id", a.listExportHandler)
	router.GET("/exports/:id/:file", a.getExportHandler)

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
