// Package trigger toggles clip captures from a push button.
package trigger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrUnsupported = errors.New("GPIO triggers are only supported on linux")

// Toggler starts or stops a background capture.
type Toggler interface {
	Toggle(ctx context.Context, source string, d time.Duration) bool
}

type Config struct {
	Chip     string
	Line     int
	Debounce time.Duration
	// Duration limits captures started by the button. Zero records until
	// the button is pressed again.
	Duration time.Duration
}

// Button turns presses into Toggle calls. Presses closer together than
// the debounce period are ignored.
type Button struct {
	ctx      context.Context
	toggler  Toggler
	debounce time.Duration
	duration time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	last    time.Duration
	pressed bool
	presses int
}

func NewButton(ctx context.Context, t Toggler, cfg Config, log *slog.Logger) *Button {
	if log == nil {
		log = slog.Default()
	}
	return &Button{ctx: ctx, toggler: t, debounce: cfg.Debounce, duration: cfg.Duration, log: log}
}

// Press handles a button press at ts, a monotonic event timestamp.
func (b *Button) Press(ts time.Duration) {
	b.mu.Lock()
	if b.pressed && ts-b.last < b.debounce {
		b.mu.Unlock()
		return
	}
	b.pressed = true
	b.last = ts
	b.presses++
	b.mu.Unlock()

	if b.toggler.Toggle(b.ctx, "trigger", b.duration) {
		b.log.Info("Trigger started capture")
	} else {
		b.log.Info("Trigger stopped capture")
	}
}

// Presses is the number of accepted presses.
func (b *Button) Presses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presses
}
