package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/vbonduro/restockr/internal/auth"
	"github.com/vbonduro/restockr/internal/config"
	"github.com/vbonduro/restockr/internal/db"
	"github.com/vbonduro/restockr/internal/logging"
	"github.com/vbonduro/restockr/internal/service"
	"github.com/vbonduro/restockr/internal/store"
	"github.com/vbonduro/restockr/internal/web"
)

// app holds what every command needs: settings, a logger and an open
// database. close releases both.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	close  func()
}

func openApp() (*app, error) {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     database,
		close: func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
			cleanup()
		},
	}, nil
}

func (a *app) newService(ctx context.Context) (*service.AssistantService, error) {
	predictor, err := newPredictor(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	receipts, err := newReceiptStore(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize receipt store: %w", err)
	}

	return service.NewAssistantService(
		store.NewInventoryStore(a.db),
		store.NewHistoryStore(a.db),
		store.NewConfigStore(a.db),
		store.NewAuditStore(a.db),
		store.NewBatcher(a.db),
		predictor,
		receipts,
		a.logger,
		service.Options{
			HistoryWindow:  a.cfg.HistoryWindow,
			MaxSuggestions: a.cfg.MaxSuggestions,
		},
	), nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "restockr",
		Short:         "Household inventory tracking with forecast-driven restocking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newForecastCmd(), newMigrateCmd(), newTokenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.newService(ctx)
			if err != nil {
				return err
			}
			if a.cfg.AuthJWTSecret == "" {
				a.logger.Warn("AUTH_JWT_SECRET not set, all requests run as the default user", "user_id", a.cfg.DefaultUserID)
			}

			server := web.NewServer(svc, newGeminiProxy(a.cfg, a.logger), a.cfg.AuthJWTSecret, a.cfg.DefaultUserID, a.logger)
			return server.ListenAndServe(ctx, a.cfg.ListenAddr)
		},
	}
}

func newForecastCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Run one forecast for a user and print the outcome as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			if userID == "" {
				userID = a.cfg.DefaultUserID
			}

			outcome, err := svc.RunForecast(cmd.Context(), userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to DEFAULT_USER_ID)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the database applies migrations.
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()
			a.logger.Info("database is up to date", "path", a.cfg.DBPath)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.AuthJWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}
			if userID == "" {
				return errors.New("--user is required")
			}
			token, err := auth.GenerateToken(userID, []byte(cfg.AuthJWTSecret), ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
