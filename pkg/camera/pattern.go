package camera

import (
	"context"
	"sync"
	"time"

	"github.com/wachiwi/kcamera/pkg/frame"
)

// Pattern is a driver that synthesizes BGR888 gradient frames at the
// configured framerate. It stands in for a sensor during development.
type Pattern struct {
	mu       sync.Mutex
	controls Controls
}

// NewPattern returns a test-pattern driver.
func NewPattern() *Pattern {
	return &Pattern{}
}

func (p *Pattern) Name() string { return "pattern" }

func (p *Pattern) Run(ctx context.Context, cfg DriverConfig, sink FrameSink) error {
	p.mu.Lock()
	p.controls = cfg.Controls
	p.mu.Unlock()

	fps := cfg.Framerate
	if fps == 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	size, err := frame.Size(cfg.Width, cfg.Height, frame.BGR888)
	if err != nil {
		return err
	}
	buf := make([]byte, size)
	start := time.Now()
	var n int

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.fill(buf, int(cfg.Width), int(cfg.Height), n)
			n++
			sink(cfg.Width, cfg.Height, frame.BGR888, uint64(time.Since(start).Microseconds()), buf)
		}
	}
}

// fill draws a horizontal and vertical gradient whose blue channel cycles
// with the frame number.
func (p *Pattern) fill(buf []byte, width, height, n int) {
	p.mu.Lock()
	gain := 1 + p.controls.ExposureValue/10
	p.mu.Unlock()

	blue := byte(n % 256)
	for y := 0; y < height; y++ {
		row := buf[y*width*3:]
		for x := 0; x < width; x++ {
			row[x*3] = blue
			row[x*3+1] = scale(byte((x*255)/width), gain)
			row[x*3+2] = scale(byte((y*255)/height), gain)
		}
	}
}

func scale(v byte, gain float64) byte {
	f := float64(v) * gain
	if f > 255 {
		return 255
	}
	if f < 0 {
		return 0
	}
	return byte(f)
}

func (p *Pattern) ApplyControls(c Controls) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls = c
	return nil
}

// Controls returns the controls last pushed to the driver.
func (p *Pattern) Controls() Controls {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls
}
