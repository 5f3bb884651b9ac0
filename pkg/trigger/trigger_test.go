package trigger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeToggler struct {
	mu     sync.Mutex
	active bool
	calls  int
	d      time.Duration
}

func (f *fakeToggler) Toggle(ctx context.Context, source string, d time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.d = d
	f.active = !f.active
	return f.active
}

func TestButtonDebounce(t *testing.T) {
	tog := &fakeToggler{}
	b := NewButton(context.Background(), tog, Config{Debounce: 50 * time.Millisecond, Duration: 30 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	b.Press(0)
	b.Press(10 * time.Millisecond)
	b.Press(49 * time.Millisecond)
	if tog.calls != 1 {
		t.Fatalf("expected bounces to be ignored, got %d toggles", tog.calls)
	}
	if tog.d != 30*time.Second {
		t.Errorf("expected the configured duration, got %v", tog.d)
	}

	b.Press(100 * time.Millisecond)
	if tog.calls != 2 || tog.active {
		t.Errorf("expected second press to stop the capture, calls=%d active=%v", tog.calls, tog.active)
	}
	if b.Presses() != 2 {
		t.Errorf("expected 2 accepted presses, got %d", b.Presses())
	}
}

func TestButtonWithoutDebounce(t *testing.T) {
	tog := &fakeToggler{}
	b := NewButton(context.Background(), tog, Config{}, nil)
	b.Press(5)
	b.Press(5)
	if tog.calls != 2 {
		t.Errorf("expected every press to count, got %d", tog.calls)
	}
}
