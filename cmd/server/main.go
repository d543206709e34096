package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney-draft-backend/internal/config"
	"github.com/DoyleJ11/tourney-draft-backend/internal/httpapi"
	"github.com/DoyleJ11/tourney-draft-backend/internal/hub"
	"github.com/DoyleJ11/tourney-draft-backend/internal/lobby"
	"github.com/DoyleJ11/tourney-draft-backend/internal/store"
	"github.com/DoyleJ11/tourney-draft-backend/internal/telemetry"
)

const (
	releaseVersion  = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

type configFlags struct {
	config.Config
	originPatterns []string
}

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	cfg := &configFlags{Config: config.Default()}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(newCmd(cfg).ExecuteContext(ctx))
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, originPatterns []string) error {
	repo, closeRepo, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	h := hub.NewHub(ctx, hub.Options{
		Rules: cfg.Rules(),
		Lobby: lobby.Options{
			AutoAdvance:      cfg.AutoAdvance,
			AutoAdvanceDelay: cfg.AutoAdvanceDelay,
			Repo:             repo,
			StoreTimeout:     cfg.StoreTimeout,
		},
		Log: log,
	})
	defer func() { h.Inbox() <- hub.ShutdownHub{} }()

	routes := httpapi.RouteOptions{OriginPatterns: originPatterns, Log: log}

	pollerDone := make(chan struct{})
	if cfg.TelemetryEnabled {
		client := telemetry.NewClient(telemetry.ClientConfig{
			BaseURL:         cfg.TelemetryURL,
			StatusTimeout:   cfg.RequestTimeout,
			ShowcaseTimeout: cfg.ShowcaseTimeout,
		})
		showcase, err := telemetry.NewShowcaseCache(client, cfg.ShowcaseCacheSize, log)
		if err != nil {
			return err
		}
		routes.Showcase = showcase

		poller := telemetry.NewPoller(client, h, log, telemetry.Options{
			Interval:       cfg.PollInterval,
			FailureBackoff: cfg.FailureBackoff,
			StartupGrace:   cfg.StartupGrace,
		})
		go func() {
			defer close(pollerDone)
			poller.Run(ctx)
		}()
	} else {
		close(pollerDone)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(h, routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	}

	<-pollerDone
	return nil
}

func openRepository(cfg config.Config, log *zap.Logger) (store.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("choice logs kept in memory")
		return store.NewMemory(), func() {}, nil
	}
	g, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("choice logs stored in postgres")
	return g, func() {
		if err := g.Close(); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}, nil
}
