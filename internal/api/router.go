// Package api exposes dispatch solves, comparisons and the run history over
// HTTP.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ammonia-battery/internal/api/handlers"
	"ammonia-battery/internal/api/middleware"
	"ammonia-battery/internal/api/models"
	"ammonia-battery/internal/scenario"
	"ammonia-battery/internal/store"
)

// Deps are the services the router wires into its handlers.
type Deps struct {
	Runner *scenario.Runner
	Cache  *store.ResultCache
	// Runs enables the run history routes when set.
	Runs       handlers.RunStore
	SystemsDir string
	// StaticDir, when it exists, is served as a single-page front end.
	StaticDir string
	Origins   []string
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := d.Runner
	if runner == nil {
		runner = scenario.NewRunner(logger, scenario.WithCache(d.Cache))
	}

	router := gin.New()
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.CORS(d.Origins...))
	router.Use(middleware.Logger(logger))

	systemHandler := handlers.NewSystemHandler(d.SystemsDir, logger)
	dispatchHandler := handlers.NewDispatchHandler(runner, d.Cache, d.Runs, systemHandler, logger)
	technologyHandler := handlers.NewTechnologyHandler()
	strategyHandler := handlers.NewStrategyHandler()

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cached_runs": d.Cache.Len()})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/dispatch", dispatchHandler.RunDispatch)
		v1.POST("/dispatch/compare", dispatchHandler.CompareDispatch)
		v1.GET("/dispatch/:id/schedule", dispatchHandler.GetSchedule)

		v1.GET("/systems", systemHandler.ListSystems)
		v1.GET("/technologies", technologyHandler.ListTechnologies)
		v1.GET("/strategies", strategyHandler.ListStrategies)

		if d.Runs != nil {
			runHandler := handlers.NewRunHandler(d.Runs, logger)
			v1.GET("/runs", runHandler.ListRuns)
			v1.GET("/runs/:id", runHandler.GetRun)
			v1.DELETE("/runs/:id", runHandler.DeleteRun)
		}
	}

	serveStatic(router, d.StaticDir, logger)
	return router
}

// serveStatic serves the built front end, answering index.html for every
// non-API route so client-side routing works.
func serveStatic(router *gin.Engine, dir string, logger *zap.Logger) {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "Not found"},
		})
	}
	if dir == "" {
		router.NoRoute(notFound)
		return
	}
	if _, err := os.Stat(dir); err != nil {
		logger.Info("static directory not found, skipping static file serving", zap.String("dir", dir))
		router.NoRoute(notFound)
		return
	}

	router.Static("/assets", filepath.Join(dir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(dir, "favicon.ico"))
	index := filepath.Join(dir, "index.html")
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			notFound(c)
			return
		}
		c.File(index)
	})
	logger.Info("serving static files", zap.String("dir", dir))
}
