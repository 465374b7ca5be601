package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"github.com/waclient/internal/config"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/startup"
	"github.com/waclient/internal/storeserver"
)

func main() {
	logger.SetPrefix("storeserver")
	backend := flag.String("backend", "", "record backend: memory | redis | postgres (default from config)")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	seed := flag.String("seed", "", "load a json-server db.json file at startup")
	hashPasswords := flag.Bool("hash-passwords", false, "store seeded user passwords as bcrypt hashes")
	migrate := flag.Bool("migrate", false, "run database migrations and exit (postgres)")
	flag.Parse()

	cfg := config.LoadServer()
	logger.SetLevel(cfg.LogLevel)
	if *backend != "" {
		cfg.Backend = *backend
	}
	logger.Info("starting store server")

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startup.StartEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	store, err := startup.OpenRecordStore(cfg)
	if err != nil {
		logger.Errorf("open record store: %v", err)
		os.Exit(1)
	}
	defer store.Close()
	if *migrate && !*dev {
		return
	}

	if *seed != "" {
		data, err := os.ReadFile(*seed)
		if err != nil {
			logger.Errorf("read seed %s: %v", *seed, err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = storeserver.Seed(ctx, store, data, storeserver.SeedOptions{HashPasswords: *hashPasswords})
		cancel()
		if err != nil {
			logger.Errorf("seed: %v", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: storeserver.NewRouter(store, storeserver.Options{
			AllowedOrigins:     cfg.AllowedOrigins(),
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s (backend %s)", cfg.Addr, cfg.Backend)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	srvWg.Wait()
	logger.Info("server stopped")
	logger.Sync()
}
