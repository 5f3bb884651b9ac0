// Package mailbox hands the most recent live frame from the capture
// producer to whichever consumer asks for it next.
package mailbox

import (
	"sync"
	"time"

	"github.com/wachiwi/kcamera/pkg/frame"
)

// FrameTimeout is how long the mailbox waits for a consumer to come back
// before capture is considered abandoned.
const FrameTimeout = 5 * time.Second

// Mailbox is a single-slot buffer. It does not own a lock: every method
// must be called with the Locker passed to New held, which lets the camera
// guard its own state and the slot with one frame lock.
type Mailbox struct {
	cond       *sync.Cond
	slot       *frame.Frame
	running    bool
	maxLatency uint64 // microseconds
	timer      time.Time
	now        func() time.Time

	stale uint64
	busy  uint64
}

// New builds a mailbox guarded by l. maxLatency is in microseconds.
func New(l sync.Locker, maxLatency uint32) *Mailbox {
	return &Mailbox{
		cond:       sync.NewCond(l),
		maxLatency: uint64(maxLatency),
		now:        time.Now,
	}
}

// SetClock replaces the time source used by the consumer timer.
func (m *Mailbox) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Mailbox) SetMaxLatency(us uint32) {
	m.maxLatency = uint64(us)
}

// Open marks the producer as running and disarms the consumer timer.
func (m *Mailbox) Open() {
	m.running = true
	m.timer = time.Time{}
}

// Close marks the producer as stopped without waking anybody. Consumers that
// are already waiting stay parked until the next Broadcast or Flush.
func (m *Mailbox) Close() {
	m.running = false
}

// Flush drops the slotted frame and wakes every waiter.
func (m *Mailbox) Flush() {
	m.slot = nil
	m.cond.Broadcast()
}

func (m *Mailbox) Running() bool {
	return m.running
}

// Expire discards the slotted frame if it is more than maxLatency older
// than pts. It reports whether a frame was dropped.
func (m *Mailbox) Expire(pts uint64) bool {
	if m.slot == nil || pts < m.slot.Pts {
		return false
	}
	if pts-m.slot.Pts > m.maxLatency {
		m.slot = nil
		m.stale++
		return true
	}
	return false
}

// Vacant reports whether Put would be accepted.
func (m *Mailbox) Vacant() bool {
	return m.slot == nil
}

// Put stores f if the slot is empty. A newer frame never displaces an
// unconsumed one; Expire takes care of frames that are too old.
func (m *Mailbox) Put(f *frame.Frame) bool {
	if m.slot != nil {
		m.Reject()
		return false
	}
	m.slot = f
	return true
}

// Reject counts a frame the producer discarded because the slot was
// occupied.
func (m *Mailbox) Reject() {
	m.busy++
}

// Publish expires a stale frame, stores f if there is room and wakes the
// waiters.
func (m *Mailbox) Publish(f *frame.Frame) bool {
	m.Expire(f.Pts)
	ok := m.Put(f)
	m.cond.Broadcast()
	return ok
}

// Take arms the consumer timer and blocks until a frame is available or the
// producer stops. It returns nil in the latter case.
func (m *Mailbox) Take() *frame.Frame {
	m.timer = m.now()
	for m.slot == nil && m.running {
		m.cond.Wait()
	}
	f := m.slot
	m.slot = nil
	return f
}

// Peek returns the slotted frame without consuming it.
func (m *Mailbox) Peek() *frame.Frame {
	return m.slot
}

// TimedOut reports whether the consumer timer is armed and has not been
// re-armed for longer than FrameTimeout.
func (m *Mailbox) TimedOut() bool {
	if m.timer.IsZero() {
		return false
	}
	return m.now().Sub(m.timer) > FrameTimeout
}

// Wait parks the caller on the mailbox condition.
func (m *Mailbox) Wait() {
	m.cond.Wait()
}

func (m *Mailbox) Broadcast() {
	m.cond.Broadcast()
}

// Stats returns the number of frames dropped for staleness and the number
// rejected because the slot was occupied.
func (m *Mailbox) Stats() (stale, busy uint64) {
	return m.stale, m.busy
}
