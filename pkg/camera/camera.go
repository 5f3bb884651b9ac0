package camera

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wachiwi/kcamera/pkg/frame"
	"github.com/wachiwi/kcamera/pkg/mailbox"
	"github.com/wachiwi/kcamera/pkg/record"
)

var (
	ErrSessionExists    = errors.New("a camera session is already open")
	ErrSessionClosed    = errors.New("camera session is closed")
	ErrAlreadyRunning   = errors.New("camera is already streaming")
	ErrNotRunning       = errors.New("camera is not streaming")
	ErrAlreadyRecording = errors.New("a recording is already attached")
)

// fpsAlpha is the weight of the newest sample in the measured framerate.
const fpsAlpha = 0.2

// State is the capture lifecycle position.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
	RestartPending
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case RestartPending:
		return "restarting"
	}
	return "unknown"
}

// Only one session may drive the sensor at a time.
var sessionOpen atomic.Bool

// Session runs a Driver and routes its frames to the live mailbox or to the
// attached recording.
//
// Locks are always taken in the order paramsMu, mu, then a Record's own
// lock. The producer goroutine never takes paramsMu.
type Session struct {
	paramsMu  sync.Mutex
	requested Params
	applied   Params

	// mu is the frame lock. It guards the fields below and the mailbox.
	mu            sync.Mutex
	mail          *mailbox.Mailbox
	rec           *record.Record
	state         State
	closed        bool
	ptsOffset     uint64
	havePtsOffset bool
	lastPts       uint64
	fps           float64
	minFPS        uint
	maxFPS        uint
	reserve       uint
	cancel        context.CancelFunc
	done          chan struct{}

	driver Driver
	memory MemoryProbe
	alloc  frame.Allocator
	log    *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

func WithParams(p Params) Option {
	return func(s *Session) { s.requested = p }
}

func WithMemoryProbe(m MemoryProbe) Option {
	return func(s *Session) { s.memory = m }
}

func WithAllocator(a frame.Allocator) Option {
	return func(s *Session) { s.alloc = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock replaces the time source of the consumer timer.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.mail.SetClock(now) }
}

// NewSession claims the camera for d. It fails with ErrSessionExists until
// the previous session is closed.
func NewSession(d Driver, opts ...Option) (*Session, error) {
	if !sessionOpen.CompareAndSwap(false, true) {
		return nil, ErrSessionExists
	}
	s := &Session{
		requested: DefaultParams(),
		driver:    d,
		memory:    SystemMemory{},
		alloc:     frame.Heap{},
		log:       slog.Default(),
	}
	s.mail = mailbox.New(&s.mu, s.requested.MaxLatency)
	for _, opt := range opts {
		opt(s)
	}

	p, err := s.requested.Normalize()
	if err != nil {
		sessionOpen.Store(false)
		return nil, err
	}
	s.requested = p
	s.applied = p
	s.setModeLimits(p.Mode)
	s.reserve = p.MemReserve
	s.mail.SetMaxLatency(p.MaxLatency)
	return s, nil
}

// Close stops capture and releases the camera.
func (s *Session) Close() error {
	s.Stop()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	sessionOpen.Store(false)
	return nil
}

func (s *Session) setModeLimits(name string) {
	m, err := LookupMode(name)
	if err != nil {
		return
	}
	s.minFPS, s.maxFPS = m.MinFPS, m.MaxFPS
}

// Start launches the producer. It waits for a producer that stopped itself
// to finish exiting first. Start must not be called from a FrameSink.
func (s *Session) Start() error {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != Stopped && s.state != RestartPending {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	prev := s.done
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}

	p, err := s.requested.Normalize()
	if err != nil {
		return err
	}
	s.requested = p
	s.applied = p

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.state = Starting
	s.setModeLimits(p.Mode)
	s.reserve = p.MemReserve
	s.mail.SetMaxLatency(p.MaxLatency)
	s.mail.Open()
	s.havePtsOffset = false
	s.ptsOffset = 0
	s.lastPts = 0
	s.fps = 0
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	cfg := DriverConfig{
		Width:     p.Width,
		Height:    p.Height,
		Framerate: p.Framerate,
		Controls:  ControlsFor(p, ^FieldSet(0)),
	}
	go s.produce(ctx, cfg, done)

	s.mu.Lock()
	if s.state == Starting {
		s.state = Running
	}
	s.mu.Unlock()

	s.log.Info("Started capture", "driver", s.driver.Name(), "width", p.Width, "height", p.Height, "fps", p.Framerate, "mode", p.Mode)
	return nil
}

func (s *Session) produce(ctx context.Context, cfg DriverConfig, done chan struct{}) {
	defer close(done)

	err := s.driver.Run(ctx, cfg, s.onFrame)
	if err != nil && ctx.Err() == nil {
		s.log.Error("Capture driver failed", "driver", s.driver.Name(), "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done && (s.state == Running || s.state == Starting) {
		// the driver ended on its own
		s.state = Stopped
		s.mail.Close()
		s.detachLocked("driver")
		s.mail.Flush()
		s.fps = 0
	}
}

// Stop stops capture, detaches any recording and wakes every consumer.
func (s *Session) Stop() {
	s.StopWith(true, true)
}

// StopWith stops capture and releases blocked consumers. flush also detaches
// the recording and drops the live frame; join waits for the producer to
// exit.
func (s *Session) StopWith(join, flush bool) {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	s.stopLocked(join, flush, Stopped)
}

func (s *Session) stopLocked(join, flush bool, next State) {
	s.mu.Lock()
	if s.state == Stopped || s.state == RestartPending {
		done := s.done
		s.state = next
		if next != RestartPending {
			s.mail.Close()
			s.mail.Broadcast()
		}
		s.mu.Unlock()
		if join && done != nil {
			<-done
		}
		return
	}
	s.state = Stopping
	cancel, done := s.cancel, s.done
	switch {
	case flush:
		s.mail.Close()
		s.detachLocked("stopped")
		s.mail.Flush()
	case next != RestartPending:
		// the live frame stays slotted for a late Take
		s.mail.Close()
		s.mail.Broadcast()
	}
	s.mu.Unlock()

	cancel()
	if join {
		<-done
	}

	s.mu.Lock()
	s.state = next
	s.fps = 0
	s.mu.Unlock()
	s.log.Info("Stopped capture", "driver", s.driver.Name(), "flush", flush)
}

// abandon stops capture from inside the producer without waiting for it.
func (s *Session) abandon(reason string) {
	s.mu.Lock()
	if s.state != Running && s.state != Starting {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	s.mail.Close()
	s.detachLocked(reason)
	s.mail.Flush()
	s.fps = 0
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.log.Info("Capture stopped", "reason", reason)
}

// onFrame is the FrameSink handed to the driver.
func (s *Session) onFrame(width, height uint16, format frame.PixelFormat, ts uint64, data []byte) {
	framesReceived.Add(context.Background(), 1)

	rec, ended, stop := s.route(width, height, format, ts, data)
	if ended != "" {
		s.endRecord(rec, ended)
	}
	if stop != "" {
		s.abandon(stop)
	}
}

// route does all per-frame work that needs the frame lock. Stop actions are
// returned so they run after the lock is released.
func (s *Session) route(width, height uint16, format frame.PixelFormat, ts uint64, data []byte) (rec *record.Record, ended, stop string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec = s.rec
	if rec == nil && s.mail.TimedOut() {
		s.log.Info("No consumer asked for a frame, stopping capture", "timeout", mailbox.FrameTimeout)
		return rec, "", "abandoned"
	}

	if !s.havePtsOffset {
		s.ptsOffset = ts
		s.havePtsOffset = true
	}
	var pts uint64
	if ts >= s.ptsOffset {
		pts = ts - s.ptsOffset
	} else {
		s.log.Warn("Driver timestamp before stream start", "ts", ts, "offset", s.ptsOffset)
	}

	if pts > s.lastPts {
		s.fps = (1-fpsAlpha)*s.fps + fpsAlpha*1e6/float64(pts-s.lastPts)
		fpsGauge.Record(context.Background(), s.fps)
	} else if pts < s.lastPts {
		s.log.Warn("Driver timestamp went backwards", "pts", pts, "last", s.lastPts)
	}

	if rec == nil && s.mail.Expire(pts) {
		recordDrop("stale")
	}

	if (rec != nil || s.mail.Vacant()) && s.mail.Running() {
		f, err := frame.New(width, height, format, pts, data, s.alloc)
		switch {
		case errors.Is(err, frame.ErrAllocation):
			s.log.Error("Frame allocation failed, stopping capture", "error", err)
			recordDrop("allocation")
			return rec, "", "allocation"
		case err != nil:
			s.log.Warn("Dropping malformed frame", "error", err, "width", width, "height", height, "format", format)
			recordDrop("malformed")
		case rec != nil:
			err := rec.Append(f)
			switch {
			case errors.Is(err, record.ErrRecordingEnded):
				ended = "duration"
			case rec.State() == record.Stopped:
				ended = "stopped"
			}
			bufferedGauge.Record(context.Background(), int64(rec.Len()))
		default:
			s.mail.Put(f)
		}
		s.mail.Broadcast()
	} else {
		s.mail.Reject()
		recordDrop("busy")
	}

	s.lastPts = pts

	if rec != nil && ended == "" && s.reserveExceededLocked() {
		s.log.Warn("Memory reserve reached, ending recording", "reserve", s.reserve)
		ended = "memory"
	}
	return rec, ended, ""
}

func (s *Session) reserveExceededLocked() bool {
	avail, err := s.memory.AvailablePercent()
	if err != nil {
		s.log.Debug("Memory probe failed", "error", err)
		return false
	}
	return avail < int(s.reserve)
}

// ReserveExceeded reports whether available memory fell below the reserve.
func (s *Session) ReserveExceeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserveExceededLocked()
}

func (s *Session) detachLocked(reason string) {
	if s.rec == nil {
		return
	}
	s.rec.Stop()
	s.rec = nil
	recordEnd(reason)
	s.log.Info("Recording ended", "reason", reason)
}

func (s *Session) endRecord(rec *record.Record, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == rec {
		s.detachLocked(reason)
	} else {
		rec.Stop()
	}
	s.mail.Broadcast()
}

// StartRecord attaches a new recording built from the applied start shift
// and duration.
func (s *Session) StartRecord() (*record.Record, error) {
	s.paramsMu.Lock()
	shift, duration := s.applied.StartShift, s.applied.Duration
	s.paramsMu.Unlock()

	rec := record.New(shift, duration)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.rec != nil {
		return nil, ErrAlreadyRecording
	}
	s.rec = rec
	s.log.Info("Recording attached", "startShift", shift, "duration", duration)
	return rec, nil
}

// StopRecord ends and detaches the current recording, if any.
func (s *Session) StopRecord() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked("stopped")
	s.mail.Broadcast()
}

// Record replaces any current recording with a new one and makes sure
// capture is running.
func (s *Session) Record() (*record.Record, error) {
	s.StopRecord()
	rec, err := s.StartRecord()
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		s.StopRecord()
		return nil, err
	}
	return rec, nil
}

// CurrentRecord returns the attached recording or nil.
func (s *Session) CurrentRecord() *record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// NextLiveFrame starts capture if needed and blocks until a live frame is
// available. It returns ErrNotRunning once capture stops.
func (s *Session) NextLiveFrame() (*frame.Frame, error) {
	if s.State() == Stopped {
		if err := s.Start(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.mail.Take()
	if f == nil {
		return nil, ErrNotRunning
	}
	return f, nil
}

// WaitRecordFrame blocks while rec has no unread frame, capture is running
// and rec is still the attached recording, then returns the next frame.
// It returns nil when rec has nothing more to give.
func (s *Session) WaitRecordFrame(rec *record.Record) *frame.Frame {
	s.mu.Lock()
	for rec.AtEnd() && s.mail.Running() && s.rec == rec {
		s.mail.Wait()
	}
	s.mu.Unlock()
	return rec.Next()
}

// LatestRecordFrame waits for the next frame to be routed and returns the
// newest frame of rec.
func (s *Session) LatestRecordFrame(rec *record.Record) *frame.Frame {
	s.mu.Lock()
	if s.mail.Running() && s.rec == rec {
		s.mail.Wait()
	}
	s.mu.Unlock()
	return rec.Back()
}

// RecordProgress reports how far rec is towards its end, 0..100. A record
// that is not attached reports its playback position instead.
func (s *Session) RecordProgress(rec *record.Record) int {
	s.mu.Lock()
	attached := rec != nil && s.rec == rec
	running := s.mail.Running()
	var memory int
	if attached {
		if avail, err := s.memory.AvailablePercent(); err == nil {
			memory = memoryReservePercent(avail, s.reserve)
		}
	}
	s.mu.Unlock()

	if rec == nil {
		return 100
	}
	if !attached {
		return rec.PlayProgress()
	}
	if !running {
		return 100
	}
	return max(memory, rec.DurationProgress())
}

// IsRecording reports whether rec is attached and still accepting frames.
func (s *Session) IsRecording(rec *record.Record) bool {
	s.mu.Lock()
	attached := rec != nil && s.rec == rec
	s.mu.Unlock()
	return attached && rec.IsRecording()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the producer is live.
func (s *Session) Running() bool {
	st := s.State()
	return st == Running || st == Starting
}

// MeasuredFPS is the smoothed framerate of the driver.
func (s *Session) MeasuredFPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// FPSRange is the framerate range of the current mode.
func (s *Session) FPSRange() (minFPS, maxFPS uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minFPS, s.maxFPS
}

// Params returns the applied settings.
func (s *Session) Params() Params {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	return s.applied
}

// DriverName names the sensor driver.
func (s *Session) DriverName() string {
	return s.driver.Name()
}

// MailboxStats returns the live mailbox drop counters.
func (s *Session) MailboxStats() (stale, busy uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mail.Stats()
}
