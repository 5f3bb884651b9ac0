package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wachiwi/kcamera/pkg/frame"
)

// Pipe drives an external capture process that writes raw frames to
// stdout: rpicam-vid on a Raspberry Pi, ffmpeg on macOS.
type Pipe struct {
	mu       sync.Mutex
	controls Controls
}

// NewPipe returns the platform capture-process driver.
func NewPipe() *Pipe {
	return &Pipe{}
}

func (p *Pipe) Name() string { return "pipe" }

func (p *Pipe) Run(ctx context.Context, cfg DriverConfig, sink FrameSink) error {
	cmd, format, err := streamCommand(ctx, cfg)
	if err != nil {
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w, stderr: %s", cmd.Path, err, stderr.String())
	}
	slog.Info("Started camera streaming process", "command", cmd.Path, "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate, "format", format)

	p.mu.Lock()
	p.controls = cfg.Controls
	p.mu.Unlock()

	pumpErr := PumpFrames(stdout, cfg.Width, cfg.Height, format, sink)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		slog.Info("Camera streaming process exited cleanly")
		return nil
	}
	if waitErr != nil {
		slog.Warn("Camera streaming process exited", "error", waitErr, "stderr", stderr.String())
		return fmt.Errorf("capture process: %w", waitErr)
	}
	return pumpErr
}

// ApplyControls records c. A capture process takes its settings on the
// command line, so they reach the sensor on the next start.
func (p *Pipe) ApplyControls(c Controls) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls = c
	slog.Debug("Controls deferred until capture restart", "fields", c.Changed.Names())
	return nil
}

// PumpFrames reads fixed-size raw frames from r and hands each to sink with
// a timestamp measured from the first byte read. It returns nil on a clean
// end of stream.
func PumpFrames(r io.Reader, width, height uint16, format frame.PixelFormat, sink FrameSink) error {
	size, err := frame.Size(width, height, format)
	if err != nil {
		return err
	}
	buf := make([]byte, size)
	var start time.Time

	for {
		_, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Warn("Capture stream ended mid-frame", "frameBytes", size)
				return nil
			}
			return fmt.Errorf("stream read: %w", err)
		}
		if start.IsZero() {
			start = time.Now()
		}
		sink(width, height, format, uint64(time.Since(start).Microseconds()), buf)
	}
}

// Controls returns the controls the next capture process will start with.
func (p *Pipe) Controls() Controls {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls
}
