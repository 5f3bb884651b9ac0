// Package archive records clips from a camera session and files them in
// the catalog. The HTTP API, the cron schedule and the GPIO trigger all
// save clips through an Archiver.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/wachiwi/kcamera/pkg/camera"
	"github.com/wachiwi/kcamera/pkg/catalog"
	"github.com/wachiwi/kcamera/pkg/clip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	ErrEmptyClip = errors.New("recording captured no frames")
	ErrBusy      = errors.New("a capture is already running")
)

var (
	meter        = otel.Meter("github.com/wachiwi/kcamera/pkg/archive")
	clipsSaved   metric.Int64Counter
	clipsSkipped metric.Int64Counter
)

func init() {
	var err error
	clipsSaved, err = meter.Int64Counter("archive.clips.saved",
		metric.WithDescription("Clips written to the catalog"),
		metric.WithUnit("{clip}"),
	)
	if err != nil {
		slog.Error("Failed to create clips counter", "error", err)
		clipsSaved, _ = noop.Meter{}.Int64Counter("archive.clips.saved")
	}
	clipsSkipped, err = meter.Int64Counter("archive.clips.failed",
		metric.WithDescription("Captures that did not produce a clip"),
		metric.WithUnit("{clip}"),
	)
	if err != nil {
		slog.Error("Failed to create failed clips counter", "error", err)
		clipsSkipped, _ = noop.Meter{}.Int64Counter("archive.clips.failed")
	}
}

// Archiver turns recordings into catalog entries.
type Archiver struct {
	session *camera.Session
	catalog *catalog.Catalog
	log     *slog.Logger

	mu     sync.Mutex
	active *job
}

type job struct {
	source string
	cancel context.CancelFunc
}

func New(session *camera.Session, cat *catalog.Catalog, log *slog.Logger) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{session: session, catalog: cat, log: log}
}

// Catalog returns the catalog clips are filed in.
func (a *Archiver) Catalog() *catalog.Catalog { return a.catalog }

// Capture replaces the current recording with a new one, waits until it
// ends and saves it. d overrides the configured record duration when it is
// positive. Cancelling ctx stops the recording early; what was captured up
// to then is still saved.
func (a *Archiver) Capture(ctx context.Context, source string, d time.Duration) (catalog.Entry, error) {
	rec, err := a.session.Record()
	if err != nil {
		a.failed(source)
		return catalog.Entry{}, fmt.Errorf("start recording: %w", err)
	}
	if d > 0 {
		rec.SetDuration(uint32(d.Microseconds()))
	}
	// Nothing was buffered before the capture was requested, so a pre-roll
	// window would stay empty.
	if rec.StartShift() < 0 {
		rec.Start()
	}
	a.log.Info("Capturing clip", "source", source, "duration", d)

	stop := context.AfterFunc(ctx, func() {
		if a.session.CurrentRecord() == rec {
			a.session.StopRecord()
		}
	})
	for a.session.WaitRecordFrame(rec) != nil {
	}
	stop()

	if rec.Len() == 0 {
		a.failed(source)
		return catalog.Entry{}, ErrEmptyClip
	}

	entry := a.catalog.NewEntry(source)
	if err := os.MkdirAll(a.catalog.Dir(), 0755); err != nil {
		a.failed(source)
		return catalog.Entry{}, fmt.Errorf("create clip directory: %w", err)
	}
	n, err := clip.SaveFile(context.WithoutCancel(ctx), entry.Path, rec)
	if err != nil {
		a.failed(source)
		return catalog.Entry{}, fmt.Errorf("save clip: %w", err)
	}
	entry.Frames = rec.Len()
	entry.Bytes = n
	entry.ElapsedMicros = rec.ElapsedMicros()
	if err := a.catalog.Add(entry); err != nil {
		a.failed(source)
		return catalog.Entry{}, fmt.Errorf("add clip to catalog: %w", err)
	}

	clipsSaved.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	a.log.Info("Clip saved", "source", source, "id", entry.ID, "frames", entry.Frames, "bytes", entry.Bytes)
	return entry, nil
}

func (a *Archiver) failed(source string) {
	clipsSkipped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", source)))
}

// Begin starts a background capture. It fails with ErrBusy while another
// one runs.
func (a *Archiver) Begin(ctx context.Context, source string, d time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		return ErrBusy
	}
	a.beginLocked(ctx, source, d)
	return nil
}

// Cancel stops the background capture. It reports whether one was running.
func (a *Archiver) Cancel(by string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return false
	}
	a.log.Info("Stopping capture", "source", a.active.source, "by", by)
	a.active.cancel()
	return true
}

// Toggle starts a background capture, or stops the running one. It
// reports whether a capture was started.
func (a *Archiver) Toggle(ctx context.Context, source string, d time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		a.log.Info("Stopping capture", "source", a.active.source, "by", source)
		a.active.cancel()
		return false
	}
	a.beginLocked(ctx, source, d)
	return true
}

func (a *Archiver) beginLocked(ctx context.Context, source string, d time.Duration) {
	cctx, cancel := context.WithCancel(ctx)
	j := &job{source: source, cancel: cancel}
	a.active = j
	go func() {
		defer func() {
			cancel()
			a.mu.Lock()
			if a.active == j {
				a.active = nil
			}
			a.mu.Unlock()
		}()
		if _, err := a.Capture(cctx, source, d); err != nil {
			a.log.Error("Capture failed", "source", source, "error", err)
		}
	}()
}

// Active reports whether a Toggle capture is in progress.
func (a *Archiver) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}
