package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/wachiwi/kcamera/pkg/frame"
)

func fr(pts uint64) *frame.Frame {
	return &frame.Frame{Width: 1, Height: 1, Pts: pts, Data: []byte{0, 0, 0}}
}

func TestPublishKeepsOldestUntilStale(t *testing.T) {
	var mu sync.Mutex
	m := New(&mu, 100_000)
	m.Open()

	mu.Lock()
	defer mu.Unlock()

	if !m.Publish(fr(0)) {
		t.Fatal("expected first frame to be stored")
	}
	// 1. A fresh frame does not displace an unconsumed one.
	if m.Publish(fr(50_000)) {
		t.Error("expected frame at 50ms to be dropped while slot is occupied")
	}
	if got := m.Peek().Pts; got != 0 {
		t.Errorf("expected slot pts 0, got %d", got)
	}

	// 2. A frame more than maxLatency newer expires the slotted one.
	if !m.Publish(fr(150_000)) {
		t.Error("expected stale frame to be replaced")
	}
	if got := m.Peek().Pts; got != 150_000 {
		t.Errorf("expected slot pts 150000, got %d", got)
	}

	stale, busy := m.Stats()
	if stale != 1 || busy != 1 {
		t.Errorf("expected stats stale=1 busy=1, got stale=%d busy=%d", stale, busy)
	}
}

func TestExpireBoundary(t *testing.T) {
	var mu sync.Mutex
	m := New(&mu, 100)
	m.Put(fr(1000))

	if m.Expire(1100) {
		t.Error("a delta equal to maxLatency is not stale")
	}
	if !m.Expire(1101) {
		t.Error("expected frame to expire")
	}
	if !m.Vacant() {
		t.Error("expected empty slot after expiry")
	}
}

func TestTakeBlocksUntilPublish(t *testing.T) {
	var mu sync.Mutex
	m := New(&mu, 100_000)
	m.Open()

	got := make(chan *frame.Frame)
	go func() {
		mu.Lock()
		f := m.Take()
		mu.Unlock()
		got <- f
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	m.Publish(fr(42))
	mu.Unlock()

	select {
	case f := <-got:
		if f == nil || f.Pts != 42 {
			t.Fatalf("expected frame 42, got %v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Take did not return after Publish")
	}

	mu.Lock()
	if !m.Vacant() {
		t.Error("Take should clear the slot")
	}
	mu.Unlock()
}

func TestFlushWakesWaiters(t *testing.T) {
	var mu sync.Mutex
	m := New(&mu, 100_000)
	m.Open()

	const waiters = 3
	done := make(chan *frame.Frame, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			mu.Lock()
			f := m.Take()
			mu.Unlock()
			done <- f
		}()
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	m.Close()
	m.Flush()
	mu.Unlock()

	for i := 0; i < waiters; i++ {
		select {
		case f := <-done:
			if f != nil {
				t.Errorf("expected nil after stop, got %v", f)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not released by Flush")
		}
	}
}

func TestTimedOut(t *testing.T) {
	var mu sync.Mutex
	m := New(&mu, 0)
	now := time.Unix(1000, 0)
	m.SetClock(func() time.Time { return now })
	m.Open()

	if m.TimedOut() {
		t.Error("unarmed timer must not time out")
	}

	m.Put(fr(1))
	m.Take()

	now = now.Add(FrameTimeout)
	if m.TimedOut() {
		t.Error("exactly FrameTimeout is not yet a timeout")
	}
	now = now.Add(time.Millisecond)
	if !m.TimedOut() {
		t.Error("expected timeout after FrameTimeout")
	}

	m.Open()
	if m.TimedOut() {
		t.Error("Open should disarm the timer")
	}
}

func TestRejectCountsBusy(t *testing.T) {
	var mu sync.Mutex
	m := New(&mu, 100_000)
	m.Open()

	mu.Lock()
	defer mu.Unlock()

	m.Put(fr(0))
	m.Reject()
	m.Put(fr(10_000))
	if _, busy := m.Stats(); busy != 2 {
		t.Errorf("expected 2 busy drops, got %d", busy)
	}
	if m.Peek().Pts != 0 {
		t.Errorf("expected the first frame to stay slotted, got pts %d", m.Peek().Pts)
	}
}
