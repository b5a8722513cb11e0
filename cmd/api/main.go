package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"backlog/api/internal/app"
	"backlog/api/internal/config"
	"backlog/api/internal/gitrepo"
	"backlog/api/internal/search"
	"backlog/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("store backend %q failed: %v", cfg.StoreBackend, err)
	}
	gateway := store.NewGateway(backend,
		store.WithKeys(cfg.StoreKey, cfg.CredentialsKey),
		store.WithLogger(logger),
	)
	defer gateway.Close()

	opts := []app.Option{app.WithLogger(logger)}
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		opts = append(opts, app.WithMeili(meiliClient))
	}

	service, err := app.Open(ctx, cfg, gateway, opts...)
	if err != nil {
		log.Fatalf("load workspace failed: %v", err)
	}
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("backlog api listening", slog.String("addr", cfg.Addr), slog.String("store", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case "file":
		return store.NewFileBackend(cfg.DataDir)
	case "memory":
		return store.NewMemoryBackend(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return store.OpenSQLBackend(ctx, store.DialectSQLite, cfg.SQLitePath)
	case "postgres":
		return store.OpenSQLBackend(ctx, store.DialectPostgres, cfg.DatabaseURL)
	case "redis":
		return store.NewRedisBackend(cfg.RedisURL)
	case "s3":
		return store.NewObjectBackend(ctx, store.ObjectConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	case "git":
		return gitrepo.Open(cfg.GitDir, cfg.GitAuthor)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
