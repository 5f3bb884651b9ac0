// Package schedule records clips on a cron schedule and prunes the catalog.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wachiwi/kcamera/pkg/catalog"
	"github.com/wachiwi/kcamera/pkg/logger"
)

// Capturer saves a clip of duration d.
type Capturer interface {
	Capture(ctx context.Context, source string, d time.Duration) (catalog.Entry, error)
}

// Pruner drops catalog entries older than the retention period.
type Pruner interface {
	Prune(retention time.Duration) (int, error)
}

type Config struct {
	// Spec is a standard five field cron expression. Empty disables
	// scheduled recordings.
	Spec      string
	Location  string
	Duration  time.Duration
	Retention time.Duration
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	ctx  context.Context
	stop context.CancelFunc
}

// New registers the capture job (if cfg.Spec is set) and an hourly prune
// job (if cfg.Retention is positive).
func New(cfg Config, c Capturer, p Pruner, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	loc := time.Local
	if cfg.Location != "" && cfg.Location != "Local" {
		l, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("load location: %w", err)
		}
		loc = l
	}

	cl := &logger.CronLogger{Logger: log}
	ctx, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		log:  log,
		ctx:  ctx,
		stop: stop,
	}

	if cfg.Spec != "" {
		if _, err := s.cron.AddJob(cfg.Spec, CaptureJob(s.ctx, c, cfg.Duration, log)); err != nil {
			stop()
			return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Spec, err)
		}
	}
	if cfg.Retention > 0 && p != nil {
		if _, err := s.cron.AddJob("@hourly", PruneJob(p, cfg.Retention, log)); err != nil {
			stop()
			return nil, err
		}
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running captures and waits for jobs to return.
func (s *Scheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Next returns when the next job runs, or the zero time.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// CaptureJob records one clip per run.
func CaptureJob(ctx context.Context, c Capturer, d time.Duration, log *slog.Logger) cron.Job {
	return cron.FuncJob(func() {
		entry, err := c.Capture(ctx, "schedule", d)
		if err != nil {
			log.Error("Scheduled capture failed", "error", err)
			return
		}
		log.Info("Scheduled capture saved", "id", entry.ID, "frames", entry.Frames)
	})
}

// PruneJob removes expired clips.
func PruneJob(p Pruner, retention time.Duration, log *slog.Logger) cron.Job {
	return cron.FuncJob(func() {
		n, err := p.Prune(retention)
		if err != nil {
			log.Error("Failed to prune clips", "error", err)
		}
		if n > 0 {
			log.Info("Pruned clips", "count", n)
		}
	})
}
