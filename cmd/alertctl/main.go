// Command alertctl runs one engine pass per invocation, for schedulers that
// exec a binary instead of calling the HTTP trigger surface.
//
// Usage:
//
//	alertctl reminders
//	alertctl digest morning
//	alertctl refresh --file acquisition.json
//	alertctl changes --since 2026-10-14T00:00:00Z
//	alertctl migrate
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/app"
	"github.com/noah-isme/wave-alert-api/internal/dto"
	"github.com/noah-isme/wave-alert-api/internal/models"
	"github.com/noah-isme/wave-alert-api/migrations"
	"github.com/noah-isme/wave-alert-api/pkg/config"
	"github.com/noah-isme/wave-alert-api/pkg/database"
	"github.com/noah-isme/wave-alert-api/pkg/logger"
)

func main() {
	root := &cobra.Command{
		Use:           "alertctl",
		Short:         "Wave alert engine one-shot runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(remindersCmd())
	root.AddCommand(digestCmd())
	root.AddCommand(refreshCmd())
	root.AddCommand(changesCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func remindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "Send every lead-time reminder due now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				summary, err := a.Reminders.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(summary)
			})
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "digest <morning|evening>",
		Short:     "Send the morning or evening digest",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(models.DigestMorning), string(models.DigestEvening)},
		RunE: func(cmd *cobra.Command, args []string) error {
			digestType := models.DigestType(args[0])
			if !digestType.Valid() {
				return fmt.Errorf("unknown digest type %q", args[0])
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				summary, err := a.Digests.Run(ctx, digestType)
				if err != nil {
					return err
				}
				return printJSON(summary)
			})
		},
	}
}

func refreshCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Apply a schedule acquisition from a file or the configured feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req *dto.AcquisitionRequest
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read acquisition: %w", err)
				}
				req = &dto.AcquisitionRequest{}
				if err := json.Unmarshal(raw, req); err != nil {
					return fmt.Errorf("decode acquisition: %w", err)
				}
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				summary, err := a.Sync.Refresh(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(summary)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON acquisition file; empty pulls SCHEDULE_FEED_URL")
	return cmd
}

func changesCmd() *cobra.Command {
	var since string
	var limit int
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Print recorded session changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from := time.Now().Add(-24 * time.Hour)
			if since != "" {
				parsed, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
				from = parsed
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				records, err := a.Changes.ListSince(ctx, from, limit)
				if err != nil {
					return err
				}
				return printJSON(records)
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound (default 24h ago)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum records")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, logr, err := load()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			db, err := database.NewPostgres(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			applied, err := database.Migrate(ctx, db, migrations.FS)
			if err != nil {
				return err
			}
			logr.Info("migrations applied", zap.Strings("files", applied))
			return nil
		},
	}
}

func load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logr, err := load()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	a, err := app.New(cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
