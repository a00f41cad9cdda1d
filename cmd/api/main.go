package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"termbase/api/internal/app"
	"termbase/api/internal/config"
	"termbase/api/internal/scopelock"
	"termbase/api/internal/search"
	"termbase/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("termbase api stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	db, dialect, err := store.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, dialect, store.MigrationSource(cfg.MigrationsDir)); err != nil {
		return err
	}
	dataStore := store.New(db, dialect)

	var locker scopelock.Locker = scopelock.NewMemory()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisLock, err := scopelock.NewRedis(cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer redisLock.Close()
		locker = redisLock
		logger.Info("using redis for reorder locks")
	} else {
		logger.Info("using in-process reorder locks")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, search.NewSQL(dataStore), logger)
	defer searchService.Close()
	searchService.ReindexAll(ctx)

	service, err := app.New(cfg, dataStore, app.Options{
		Locker: locker,
		Search: searchService,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("termbase api listening",
			slog.String("addr", cfg.Addr),
			slog.String("driver", string(dialect)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-sigCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	return nil
}
