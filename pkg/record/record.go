// Package record holds the frames of one recording: a time window that can
// begin before or after the moment recording was requested and that ends
// once it spans a configured duration.
package record

import (
	"errors"
	"sync"

	"github.com/gammazero/deque"
	"github.com/wachiwi/kcamera/pkg/frame"
)

// State is the lifecycle position of a Record.
type State int

const (
	// Idle records have not been offered a frame yet.
	Idle State = iota
	// WaitingForShift covers both the positive shift delay and the negative
	// shift pre-roll window.
	WaitingForShift
	Active
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForShift:
		return "waiting"
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

var (
	// ErrRecordingEnded is returned by Append for the frame that reached
	// the duration bound.
	ErrRecordingEnded = errors.New("recording ended")
	ErrOutOfRange     = errors.New("frame index out of range")
)

// Record is an ordered list of frames with a read cursor. All methods are
// safe for concurrent use. Code that also holds the camera frame lock must
// take it before calling into a Record.
type Record struct {
	mu sync.Mutex

	frames     deque.Deque[*frame.Frame]
	cursor     int
	state      State
	anchorPts  uint64
	anchored   bool
	startShift int64  // microseconds; >0 delays the start, <0 keeps a pre-roll window
	duration   uint32 // microseconds; 0 is unbounded
}

// New returns an Idle record.
func New(startShift int64, duration uint32) *Record {
	return &Record{startShift: startShift, duration: duration}
}

// Append offers a frame to the record. It returns ErrRecordingEnded when f
// completed the configured duration. Frames offered to a stopped record are
// discarded.
func (r *Record) Append(f *frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Stopped {
		return nil
	}

	if !r.anchored {
		r.anchorPts = f.Pts
		r.anchored = true
		if r.state == Idle {
			if r.startShift == 0 {
				r.state = Active
			} else {
				r.state = WaitingForShift
			}
		}
	}

	if r.state == WaitingForShift && r.startShift > 0 {
		if int64(f.Pts-r.anchorPts) < r.startShift {
			// keep only the newest frame as a preview
			for r.frames.Len() > 0 {
				r.popFront()
			}
			r.frames.PushBack(f)
			return nil
		}
		for r.frames.Len() > 0 {
			r.popFront()
		}
		r.state = Active
	}

	r.frames.PushBack(f)

	if r.state == WaitingForShift && r.startShift < 0 {
		for r.frames.Len() > 1 && int64(r.front().Pts) < int64(f.Pts)+r.startShift {
			r.popFront()
		}
	}

	if r.duration > 0 && r.elapsed() >= uint64(r.duration) {
		r.state = Stopped
		return ErrRecordingEnded
	}
	return nil
}

func (r *Record) popFront() {
	r.frames.PopFront()
	if r.cursor > 0 {
		r.cursor--
	}
}

func (r *Record) front() *frame.Frame {
	if r.frames.Len() == 0 {
		return nil
	}
	return r.frames.Front()
}

func (r *Record) back() *frame.Frame {
	if r.frames.Len() == 0 {
		return nil
	}
	return r.frames.Back()
}

func (r *Record) elapsed() uint64 {
	if r.frames.Len() < 2 {
		return 0
	}
	return r.back().Pts - r.front().Pts
}

// Start makes the record accumulate from now on. A negative shift keeps the
// frames collected in its pre-roll window.
func (r *Record) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Stopped {
		return
	}
	if r.state == WaitingForShift && r.startShift > 0 {
		// the preview frame becomes the first recorded frame
		r.startShift = 0
	}
	r.state = Active
}

// Stop ends the recording. Later frames are discarded.
func (r *Record) Stop() {
	r.mu.Lock()
	r.state = Stopped
	r.mu.Unlock()
}

// Reset drops every frame and returns the record to Idle.
func (r *Record) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames.Clear()
	r.cursor = 0
	r.state = Idle
	r.anchored = false
	r.anchorPts = 0
}

// Seek moves the read cursor to frame n.
func (r *Record) Seek(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 || n >= r.frames.Len() {
		return ErrOutOfRange
	}
	r.cursor = n
	return nil
}

// Next returns the frame under the cursor and advances it. It returns nil
// at the end of the list.
func (r *Record) Next() *frame.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= r.frames.Len() {
		return nil
	}
	f := r.frames.At(r.cursor)
	r.cursor++
	return f
}

// AtEnd reports whether the cursor is past the last frame.
func (r *Record) AtEnd() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor >= r.frames.Len()
}

// At returns frame n without moving the cursor.
func (r *Record) At(n int) (*frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 || n >= r.frames.Len() {
		return nil, ErrOutOfRange
	}
	return r.frames.At(n), nil
}

func (r *Record) Front() *frame.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.front()
}

func (r *Record) Back() *frame.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.back()
}

// Frames returns a snapshot of the list in order.
func (r *Record) Frames() []*frame.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*frame.Frame, r.frames.Len())
	for i := range out {
		out[i] = r.frames.At(i)
	}
	return out
}

// ElapsedMicros is the pts span between the first and last frame.
func (r *Record) ElapsedMicros() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint32(r.elapsed())
}

func (r *Record) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames.Len()
}

func (r *Record) ReadIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsRecording reports whether the record still accepts frames. A fresh
// record counts as recording before its first frame arrives.
func (r *Record) IsRecording() bool {
	return r.State() != Stopped
}

func (r *Record) StartShift() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startShift
}

func (r *Record) SetStartShift(us int64) {
	r.mu.Lock()
	r.startShift = us
	r.mu.Unlock()
}

func (r *Record) Duration() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

func (r *Record) SetDuration(us uint32) {
	r.mu.Lock()
	r.duration = us
	r.mu.Unlock()
}

// Clock returns the record's time in microseconds. A detached record reports
// its playback position. An attached record reports the recorded span, or,
// while waiting out a positive shift, a negative countdown to the start.
func (r *Record) Clock(attached bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frames.Len() == 0 {
		return -r.startShift
	}
	front := r.front()
	if !attached {
		if r.cursor >= r.frames.Len() {
			return 0
		}
		return int64(r.frames.At(r.cursor).Pts - front.Pts)
	}
	if r.startShift > 0 && r.state == WaitingForShift {
		return int64(front.Pts) - int64(r.anchorPts) - r.startShift
	}
	return int64(r.elapsed())
}

// PlayProgress is the cursor position as a percentage of the list.
func (r *Record) PlayProgress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frames.Len() == 0 {
		return 0
	}
	return 100 * r.cursor / r.frames.Len()
}

// DurationProgress is the recorded span as a percentage of the duration
// bound, capped at 100. Unbounded records report 0.
func (r *Record) DurationProgress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.duration == 0 {
		return 0
	}
	p := r.elapsed() * 100 / uint64(r.duration)
	if p > 100 {
		p = 100
	}
	return int(p)
}
