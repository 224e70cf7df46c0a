// Package scheduler runs housekeeping jobs (event list backups and
// month snapshots) on cron schedules in the display time zone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"plancal/internal/capture"
	"plancal/internal/config"
	"plancal/internal/events"
	appLog "plancal/internal/log"
	"plancal/internal/store"
)

// Job is one scheduled task. An empty Spec disables it.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

type Scheduler struct {
	cron  *cron.Cron
	loc   *time.Location
	names []string
	ctx   context.Context
}

// New validates and registers jobs. Jobs with an empty Spec are skipped.
func New(loc *time.Location, jobs ...Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		loc: loc,
		ctx: context.Background(),
	}
	for _, job := range jobs {
		if job.Spec == "" {
			appLog.Debug("scheduler job disabled", "job", job.Name)
			continue
		}
		if job.Run == nil {
			return nil, fmt.Errorf("scheduler: job %q has no Run func", job.Name)
		}
		if _, err := s.cron.AddFunc(job.Spec, s.wrap(job)); err != nil {
			return nil, fmt.Errorf("add %s job %q: %w", job.Name, job.Spec, err)
		}
		s.names = append(s.names, job.Name)
	}
	return s, nil
}

// Jobs returns the names of the registered (enabled) jobs.
func (s *Scheduler) Jobs() []string {
	return s.names
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", job.Name)
			return
		}
		appLog.Info("scheduled job done", "job", job.Name, "elapsed_ms", time.Since(start).Milliseconds())
	}
}

// Start runs the cron loop until ctx is cancelled, then waits for running
// jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	appLog.Info("scheduler started", "tz", s.loc.String(), "jobs", s.names)

	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	appLog.Info("scheduler stopped")
}

// BackupJob snapshots the events key into cfg.Dir, keeping cfg.Keep copies.
func BackupJob(kv store.KV, cfg config.BackupConfig) Job {
	return Job{
		Name: "backup",
		Spec: cfg.Cron,
		Run: func(ctx context.Context) error {
			path, err := store.Backup(ctx, kv, events.Key, cfg.Dir, cfg.Keep, time.Now())
			if err != nil {
				return err
			}
			appLog.Info("events backup written", "path", path)
			return nil
		},
	}
}

// CaptureJob periodically refreshes the month snapshot served at /preview.png.
func CaptureJob(spec string, opts capture.Options) Job {
	return Job{
		Name: "capture",
		Spec: spec,
		Run: func(ctx context.Context) error {
			return capture.CaptureMonthPNG(ctx, opts)
		},
	}
}

// cronLogger routes robfig/cron's own logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	if err == nil {
		err = errors.New(msg)
	}
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
