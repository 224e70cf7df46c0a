package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"plancal/internal/calendar"
	"plancal/internal/config"
	"plancal/internal/events"
	appLog "plancal/internal/log"
	"plancal/internal/store"
)

const version = "0.1.0"

var (
	configPath string
	listenAddr string
)

// rootCmd runs the server when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:           "plancal",
	Short:         "World of Plans: a small calendar and event service",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./plancal.yaml", "Path to config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(backupCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	appLog.Sync()
	if err != nil {
		appLog.Error("plancal failed", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is what every subcommand needs: config, the opened store and a
// loaded events service.
type app struct {
	cfg *config.Config
	kv  store.KV
	svc *events.Service
}

// setup loads config, configures logging, opens the store and loads the
// event list (seeding it on first run).
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	// CLI --listen overrides config file listen if provided.
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := appLog.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}

	appLog.Info("effective config",
		"version", version,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"store_backend", cfg.Store.Backend,
		"store_dir", cfg.Store.Dir,
		"backup_cron", cfg.Backup.Cron,
		"capture_cron", cfg.Capture.Cron,
	)

	var seed []byte
	if cfg.SeedPath != "" {
		if seed, err = os.ReadFile(cfg.SeedPath); err != nil {
			return nil, fmt.Errorf("read seed %s: %w", cfg.SeedPath, err)
		}
	}

	kv, err := store.Open(store.Options{
		Backend:    cfg.Store.Backend,
		Dir:        cfg.Store.Dir,
		SQLitePath: cfg.Store.SQLitePath,
	})
	if err != nil {
		return nil, err
	}

	svc := events.NewService(kv, events.Options{
		Seed:      seed,
		Location:  cfg.Location(),
		WeekStart: calendar.ParseWeekStart(cfg.WeekStart),
	})
	if err := svc.Load(ctx); err != nil {
		_ = kv.Close()
		return nil, err
	}
	return &app{cfg: cfg, kv: kv, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		appLog.Error("store close failed", err)
	}
}
