package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ikimina/momoledger/internal/auth"
	"github.com/ikimina/momoledger/internal/config"
	"github.com/ikimina/momoledger/internal/gate"
	"github.com/ikimina/momoledger/internal/server"
	"github.com/ikimina/momoledger/internal/service"
	"github.com/ikimina/momoledger/internal/storage/sqlite"
	"github.com/ikimina/momoledger/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Log.Level)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.Database.Path)

	parserGate := gate.NewHTTPGate(cfg.Gate.URL, cfg.Gate.Timeout)

	ingestService := service.NewIngestService(store, parserGate, cfg.Match.Window)
	allocService := service.NewAllocationService(store)
	duplicateService := service.NewDuplicateService(store)
	recoveryService := service.NewRecoveryService(store, parserGate, cfg.Match.Window)
	suggestService := service.NewSuggestService(store)
	directoryService := service.NewDirectoryService(store)

	authenticator := auth.NewPasswordAuthenticator(store)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	handlers := server.NewHandlers(ingestService, allocService, duplicateService, recoveryService, suggestService)
	authHandlers := server.NewAuthHandlers(authenticator, jwtManager)
	directoryHandlers := server.NewDirectoryHandlers(directoryService)

	router := server.NewRouter(handlers, authHandlers, directoryHandlers, store, jwtManager)
	srv := server.New(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
