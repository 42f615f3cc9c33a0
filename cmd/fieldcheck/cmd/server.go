package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jmensah/fieldcheck/api"
	"github.com/jmensah/fieldcheck/auth"
	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/dispatch"
	"github.com/jmensah/fieldcheck/internal/config"
	"github.com/jmensah/fieldcheck/querylog"
	"github.com/jmensah/fieldcheck/ratelimit"
	"github.com/jmensah/fieldcheck/records"
	"github.com/jmensah/fieldcheck/session"
	"github.com/jmensah/fieldcheck/ussd"
	"github.com/jmensah/fieldcheck/whatsapp"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the field-query service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		ctx := cmd.Context()
		repo, closeRepo, err := openRepository(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		registry := directory.NewRegistry(repo)
		catalog := records.NewCatalog(repo)
		log := querylog.NewLog(repo)
		limiter := ratelimit.New(log, cfg.RateLimit.ResetHour, cfg.RateLimit.DailyLimit)
		authn := auth.New(registry, logger)
		dispatcher := dispatch.New(dispatch.Deps{
			Persons:  catalog,
			Wanted:   catalog,
			Cases:    catalog,
			Vehicles: catalog,
			Stats:    log,
			Log:      log,
			Logger:   logger,
		})

		// USSD attribution records are call-scoped and disposable, so they
		// always live in memory; only the WhatsApp conversation store is
		// backend-selectable.
		ussdStore := session.NewMemoryStore()
		var waStore session.Store
		switch cfg.Sessions.Backend {
		case "redis":
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			waStore = session.NewRedisStore(client)
		default:
			repoStore := session.NewRepoStore(repo, cfg.Sessions.WhatsAppMaxTTL)
			defer repoStore.Close()
			waStore = repoStore
		}

		waClient := whatsapp.NewHTTPClient(cfg.WhatsApp.APIURL, cfg.WhatsApp.Token)
		ussdRouter := ussd.NewRouter(authn, limiter, dispatcher, ussdStore, cfg.Sessions.USSDTTL, logger)
		waEngine := whatsapp.NewEngine(whatsapp.EngineDeps{
			Store:       waStore,
			Auth:        authn,
			Limiter:     limiter,
			Dispatcher:  dispatcher,
			Client:      waClient,
			TTL:         cfg.Sessions.WhatsAppTTL,
			MaxLifetime: cfg.Sessions.WhatsAppMaxTTL,
			Logger:      logger,
		})

		a := api.New(api.Deps{
			Registry:   registry,
			Limiter:    limiter,
			QueryLog:   log,
			USSD:       ussdRouter,
			WhatsApp:   waEngine,
			AdminToken: cfg.Admin.Token,
		}, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Mount("/", a.Router())

		// Housekeeping: expired-session sweeps and query-log retention.
		scheduler := cron.New()
		scheduler.AddFunc("@every 5m", func() {
			if n := ussdStore.Sweep(); n > 0 {
				logger.Info("swept expired ussd sessions", "count", n)
			}
		})
		scheduler.AddFunc("@daily", func() {
			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Retention.QueryLogDays)
			n, err := log.PurgeOlderThan(cutoff)
			if err != nil {
				logger.Warn("query log retention purge failed", "error", err)
				return
			}
			logger.Info("purged query log entries", "count", n, "cutoff", cutoff)
		})
		scheduler.Start()
		defer scheduler.Stop()

		server := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started",
			"addr", server.Addr,
			"storage", cfg.Storage.Backend,
			"sessions", cfg.Sessions.Backend,
			"shortcode", cfg.USSD.Shortcode)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
