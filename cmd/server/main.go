package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"

	router "github.com/ovstage/stagehub/internal/adapters/http"
	sigadapter "github.com/ovstage/stagehub/internal/adapters/signal"
	"github.com/ovstage/stagehub/internal/app"
	"github.com/ovstage/stagehub/internal/auth"
	"github.com/ovstage/stagehub/internal/config"
	"github.com/ovstage/stagehub/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("secret is required")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	var st *store.Store
	switch cfg.StoreBackend {
	case "valkey":
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.ValkeyAddress}})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.ValkeyAddress).Msg("valkey connect failed")
		}
		defer client.Close()
		st = store.NewValkey(client)
		log.Info().Str("addr", cfg.ValkeyAddress).Msg("using valkey store")
	default:
		st = store.NewMemory()
		log.Info().Msg("using in-memory store")
	}

	reg := app.NewRegistry()
	engine := app.NewEngine(st, reg)
	verifier := auth.NewVerifier(cfg.Secret)
	ctl := sigadapter.NewController(engine, verifier, cfg)

	// Crash recovery sweep: members left online by dropped sessions are
	// forced offline on a fixed cadence.
	go func() {
		ticker := time.NewTicker(cfg.Reconcile)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := engine.ReconcileOnlineMembers(ctx); err != nil {
					log.Error().Err(err).Msg("reconcile sweep failed")
				}
			}
		}
	}()

	r := router.SetupRouter(ctx, cfg, ctl, verifier)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("server", cfg.Server).Msg("stagehub server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
