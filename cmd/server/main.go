package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/clanchat/internal/adapters/auth"
	router "github.com/dkeye/clanchat/internal/adapters/http"
	"github.com/dkeye/clanchat/internal/adapters/store"
	"github.com/dkeye/clanchat/internal/app"
	"github.com/dkeye/clanchat/internal/app/orch"
	"github.com/dkeye/clanchat/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	verifier := auth.NewJWTVerifier(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	rooms := app.NewRouter(db, app.RouterConfig{
		OracleTimeout:   cfg.OracleTimeout,
		PersistTimeout:  cfg.PersistTimeout,
		PersistInflight: cfg.PersistInflight,
	})
	relay := orch.New(
		app.NewPresence(),
		rooms,
		app.SimplePolicy{},
		app.NewRateLimiter(cfg.RateLimit, cfg.RateInterval),
	)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:      relay,
		Verifier:  verifier,
		Directory: db,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("clanchat relay started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		err := srv.Shutdown(shutdownCtx)
		// Hijacked WebSocket connections are not tracked by the HTTP server.
		relay.Shutdown()
		if rerr := rooms.Close(shutdownCtx); rerr != nil {
			log.Warn().Err(rerr).Msg("pending messages not persisted")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}
