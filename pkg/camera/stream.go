package camera

import (
	"errors"
	"io"

	"github.com/wachiwi/kcamera/pkg/clip"
	"github.com/wachiwi/kcamera/pkg/frame"
	"github.com/wachiwi/kcamera/pkg/record"
)

var (
	ErrNotSeekable = errors.New("cannot seek within a live stream")
	ErrNoRecord    = errors.New("live streams have no recording to save")
)

// Stream is a consumer handle. A live stream delivers the latest capture
// frame (or the newest recorded frame while a recording runs). A record
// stream walks a recording, either while it is being captured or after
// it was loaded from a clip.
type Stream struct {
	session *Session
	rec     *record.Record
	index   int
}

// LiveStream returns a stream of live frames.
func (s *Session) LiveStream() *Stream {
	return &Stream{session: s}
}

// RecordStream starts a new recording and returns a stream over it.
func (s *Session) RecordStream() (*Stream, error) {
	rec, err := s.Record()
	if err != nil {
		return nil, err
	}
	return &Stream{session: s, rec: rec}, nil
}

// Playback wraps a recording that is not being captured, such as one loaded
// from a clip file. session may be nil.
func Playback(session *Session, rec *record.Record) *Stream {
	return &Stream{session: session, rec: rec}
}

// Record returns the underlying recording, nil for live streams.
func (st *Stream) Record() *record.Record {
	return st.rec
}

// Frame returns the next frame and its index. It returns io.EOF once a
// record stream has nothing more to deliver and ErrNotRunning when a live
// stream's capture stopped.
func (st *Stream) Frame() (*frame.Frame, int, error) {
	if st.rec != nil {
		idx := st.rec.ReadIndex()
		var f *frame.Frame
		if st.session != nil {
			f = st.session.WaitRecordFrame(st.rec)
		} else {
			f = st.rec.Next()
		}
		if f == nil {
			return nil, idx, io.EOF
		}
		return f, idx, nil
	}

	if rec := st.session.CurrentRecord(); rec != nil {
		if f := st.session.LatestRecordFrame(rec); f != nil {
			idx := st.index
			st.index++
			return f, idx, nil
		}
	}
	f, err := st.session.NextLiveFrame()
	if err != nil {
		return nil, st.index, err
	}
	idx := st.index
	st.index++
	return f, idx, nil
}

// Seek positions a record stream at frame n.
func (st *Stream) Seek(n int) error {
	if st.rec == nil {
		return ErrNotSeekable
	}
	return st.rec.Seek(n)
}

// Start ends a pre-roll or shift delay and records from now on.
func (st *Stream) Start() {
	if st.rec != nil {
		st.rec.Start()
	}
}

// Stop ends the recording of a record stream, or capture for a live one.
func (st *Stream) Stop() {
	if st.session == nil {
		if st.rec != nil {
			st.rec.Stop()
		}
		return
	}
	if st.rec != nil {
		if st.session.CurrentRecord() == st.rec {
			st.session.StopRecord()
		} else {
			st.rec.Stop()
		}
		return
	}
	st.session.Stop()
}

// Close releases the stream. Closing the stream of the attached recording
// ends that recording.
func (st *Stream) Close() {
	if st.session == nil {
		return
	}
	if st.rec == nil {
		st.session.Stop()
		return
	}
	if st.session.CurrentRecord() == st.rec {
		st.session.StopRecord()
	}
}

// Recording reports whether the stream's record still accepts frames.
func (st *Stream) Recording() bool {
	return st.rec != nil && st.rec.IsRecording()
}

// Len is the number of frames in the record, -1 for live streams.
func (st *Stream) Len() int {
	if st.rec == nil {
		return -1
	}
	return st.rec.Len()
}

// Index is the read cursor of a record stream or the number of frames a
// live stream delivered.
func (st *Stream) Index() int {
	if st.rec == nil {
		return st.index
	}
	return st.rec.ReadIndex()
}

func (st *Stream) AtEnd() bool {
	return st.rec == nil || st.rec.AtEnd()
}

func (st *Stream) ElapsedMicros() uint32 {
	if st.rec == nil {
		return 0
	}
	return st.rec.ElapsedMicros()
}

// Progress is the playback position of a detached record, or the recording
// progress otherwise, 0..100.
func (st *Stream) Progress() int {
	if st.session == nil {
		if st.rec == nil {
			return 100
		}
		return st.rec.PlayProgress()
	}
	if st.rec == nil {
		return st.session.RecordProgress(st.session.CurrentRecord())
	}
	return st.session.RecordProgress(st.rec)
}

// Time is the stream clock in microseconds. See record.Record.Clock.
func (st *Stream) Time() int64 {
	if st.rec == nil {
		return 0
	}
	attached := st.session != nil && st.session.CurrentRecord() == st.rec
	return st.rec.Clock(attached)
}

// Save writes the stream's recording in clip format.
func (st *Stream) Save(w io.Writer) (int64, error) {
	if st.rec == nil {
		return 0, ErrNoRecord
	}
	return clip.Save(w, st.rec)
}
