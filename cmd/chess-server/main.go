package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-hub/internal/archive"
	appcfg "github.com/park285/cheese-chess-hub/internal/config"
	"github.com/park285/cheese-chess-hub/internal/hub"
	"github.com/park285/cheese-chess-hub/internal/lobby"
	"github.com/park285/cheese-chess-hub/internal/msgcat"
	"github.com/park285/cheese-chess-hub/internal/obslog"
	"github.com/park285/cheese-chess-hub/internal/server"
	"github.com/park285/cheese-chess-hub/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := openStore(ctx, cfg)
	if err != nil {
		cancel()
		logger.Fatal("store init error", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	if err := seedIdentities(ctx, st, cfg); err != nil {
		cancel()
		logger.Fatal("identity seed error", zap.Error(err))
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		cancel()
		logger.Fatal("message catalog error", zap.Error(err))
	}

	var hubOpts []hub.Option
	var repo *archive.Repository
	if cfg.ArchiveDatabaseURL != "" {
		repo, err = archive.NewRepository(ctx, cfg.ArchiveDatabaseURL)
		if err != nil {
			cancel()
			logger.Fatal("archive init error", zap.Error(err))
		}
		hubOpts = append(hubOpts, hub.WithResultSink(repo))
	}
	cancel()

	h := hub.New(st, msgs, hubOpts...)
	srv := server.New(h, lobby.NewManager(st, h), msgs, server.Options{
		SendBuffer:     cfg.WSSendBuffer,
		ReadLimit:      cfg.WSReadLimit,
		OriginPatterns: cfg.AllowedOrigins,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.ListenAddr) }()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	h.Close()
	_ = repo.Close()
	_ = st.Close()
}

func openStore(ctx context.Context, cfg *appcfg.AppConfig) (store.Store, error) {
	switch cfg.StoreBackend {
	case appcfg.BackendMemory:
		return store.NewMemory(), nil
	case appcfg.BackendRedis:
		return store.NewRedis(ctx, cfg.RedisURL, cfg.MatchTTL)
	case appcfg.BackendPostgres:
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// seedIdentities writes the configured dev identities. A memory store with none
// configured gets a single generated token so the server is usable out of the box.
func seedIdentities(ctx context.Context, st store.Store, cfg *appcfg.AppConfig) error {
	seeds := cfg.SeedIdentities
	if len(seeds) == 0 && cfg.StoreBackend == appcfg.BackendMemory {
		token := uuid.NewString()
		seeds = map[string]string{token: "player"}
		obslog.L().Info("dev_identity", zap.String("token", token), zap.String("user", "player"))
	}
	for token, user := range seeds {
		if err := st.PutIdentity(ctx, token, user); err != nil {
			return err
		}
	}
	return nil
}
