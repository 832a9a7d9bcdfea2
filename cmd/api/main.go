package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ammonia-battery/internal/api"
	"ammonia-battery/internal/config"
	"ammonia-battery/internal/logging"
	"ammonia-battery/internal/scenario"
	"ammonia-battery/internal/solver"
	"ammonia-battery/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML file with service settings (ABATT_* env vars win)")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging(), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.ServerConfig, logger *zap.Logger) error {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := store.NewResultCache(cfg.CacheTTL)
	go cache.RunSweeper(ctx, 0)

	opts := []scenario.Option{
		scenario.WithPool(solver.NewPool(cfg.PoolSize)),
		scenario.WithCache(cache),
	}
	deps := api.Deps{
		Cache:      cache,
		SystemsDir: cfg.SystemsDir,
		StaticDir:  cfg.StaticDir,
		Origins:    cfg.CORSOrigins,
		Logger:     logger,
	}
	if cfg.DBPath != "" {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
		}
		repo, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer repo.Close()
		opts = append(opts, scenario.WithSaver(repo))
		deps.Runs = repo
		logger.Info("run history enabled", zap.String("db_path", cfg.DBPath))
	}
	deps.Runner = scenario.NewRunner(logger, opts...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
