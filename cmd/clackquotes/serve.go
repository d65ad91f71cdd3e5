package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/graffic/clackquotes/internal/api"
	"github.com/graffic/clackquotes/internal/bot"
	"github.com/graffic/clackquotes/internal/config"
	"github.com/graffic/clackquotes/internal/quotes"
	"github.com/graffic/clackquotes/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (and the Telegram bot when a token is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	slog.Info("starting clackquotes", "environment", cfg.Environment)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	store := quotes.NewStore(db.DB, quotes.Config{QueryTimeout: cfg.Database.QueryTimeout})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(store, db, api.Options{Logger: slog.Default(), Registry: reg}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Component 1: HTTP API
	g.Go(func() error {
		slog.Info("starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	})

	// Component 2: Telegram bot, optional
	if cfg.Telegram.Token != "" {
		b, err := bot.New(bot.Config{
			Token:          cfg.Telegram.Token,
			AllowedChatIDs: cfg.AllowedChatIDs,
			AutoLeave:      cfg.AutoLeaveUnauthorized,
			QuotesChatID:   cfg.Telegram.ChatID,
		}, store, slog.Default())
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		if cfg.Telegram.ChatID == 0 {
			slog.Warn("telegram chat_id not set, reactions will not count as votes")
		}
		g.Go(func() error {
			return b.Run(ctx)
		})
	} else {
		slog.Info("telegram token not set, bot disabled")
	}

	slog.Info("all components started, waiting for shutdown signal")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("component error: %w", err)
	}

	slog.Info("application stopped")
	return nil
}
