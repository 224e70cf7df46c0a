package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"plancal/internal/calendar"
	"plancal/internal/capture"
	"plancal/internal/events"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/scheduler"
	"plancal/internal/store"
	"plancal/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI, JSON API and housekeeping scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var importCmd = &cobra.Command{
	Use:   "import <file|url>",
	Short: "Import events from an iCalendar file or URL",
	Long: `Import events from an .ics file or an http(s) URL.

Recurring series are expanded over the import window. Occurrences whose
date and start time are already taken are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all events as iCalendar",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the month view of a running server as PNG",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a timestamped backup of the event list now",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

var (
	importWindow   time.Duration
	exportOutput   string
	snapshotOutput string
	snapshotMonth  string
)

func init() {
	importCmd.Flags().DurationVar(&importWindow, "window", ics.DefaultImportWindow, "How far ahead recurring series are expanded")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "Output PNG (default capture.output from config)")
	snapshotCmd.Flags().StringVar(&snapshotMonth, "month", "", "Month to capture as YYYY-MM (default current)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(a.svc.Location(),
		scheduler.BackupJob(a.kv, a.cfg.Backup),
		scheduler.CaptureJob(a.cfg.Capture.Cron, a.captureOptions(time.Time{}, a.cfg.Capture.Output)),
	)
	if err != nil {
		return err
	}

	srv := web.NewServer(a.cfg, a.svc).NewHTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return web.Serve(gctx, srv) })
	g.Go(func() error { return sched.Start(gctx) })

	if fkv, ok := a.kv.(*store.FileKV); ok && a.cfg.Store.Watch {
		g.Go(func() error {
			return fkv.Watch(gctx, events.Key, func() {
				if err := a.svc.Reload(gctx); err != nil {
					appLog.Error("reload after external change failed", err)
				}
			})
		})
	}

	err = g.Wait()
	appLog.Info("plancal exiting")
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	body, err := readSource(ctx, args[0])
	if err != nil {
		return err
	}

	from := calendar.StartOfDay(a.svc.Now())
	list, err := ics.Decode(body, a.svc.Location(), from, from.Add(importWindow))
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	added, skipped, err := a.svc.Import(ctx, list)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d events, skipped %d taken slots\n", added, skipped)
	return nil
}

// readSource loads an ICS body from a URL or a local path.
func readSource(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return ics.NewFetcher(nil).Fetch(ctx, src)
	}
	return os.ReadFile(src)
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	body := ics.Export(a.svc.List(), a.svc.Location(), time.Now())
	if exportOutput == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), body)
		return err
	}
	return os.WriteFile(exportOutput, []byte(body), 0o644)
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var month time.Time
	if snapshotMonth != "" {
		month, err = time.ParseInLocation(model.MonthLayout, snapshotMonth, a.svc.Location())
		if err != nil {
			return fmt.Errorf("--month must be YYYY-MM: %w", err)
		}
	}
	out := snapshotOutput
	if out == "" {
		out = a.cfg.Capture.Output
	}
	if err := capture.CaptureMonthPNG(cmd.Context(), a.captureOptions(month, out)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runBackup(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := store.Backup(cmd.Context(), a.kv, events.Key, a.cfg.Backup.Dir, a.cfg.Backup.Keep, time.Now())
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("nothing to back up: event list is empty")
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// captureOptions points the browser at this instance's own listen address.
func (a *app) captureOptions(month time.Time, output string) capture.Options {
	opts := capture.Options{
		BaseURL:    capture.ListenURL(a.cfg.Listen),
		Month:      month,
		OutputPath: output,
		Width:      a.cfg.Capture.Width,
		Height:     a.cfg.Capture.Height,
	}
	if a.cfg.BasicAuth != nil {
		opts.Username = a.cfg.BasicAuth.Username
		opts.Password = a.cfg.BasicAuth.Password
	}
	return opts
}
