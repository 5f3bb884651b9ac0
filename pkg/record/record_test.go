package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wachiwi/kcamera/pkg/frame"
)

func fr(pts uint64) *frame.Frame {
	return &frame.Frame{Width: 1, Height: 1, Pts: pts, Format: frame.BGR888, Data: []byte{0, 0, 0}}
}

func ptsOf(r *Record) []uint64 {
	var out []uint64
	for _, f := range r.Frames() {
		out = append(out, f.Pts)
	}
	return out
}

func TestAppendNoShift(t *testing.T) {
	r := New(0, 0)
	assert.Equal(t, Idle, r.State())

	for _, pts := range []uint64{1000, 2000, 4000} {
		require.NoError(t, r.Append(fr(pts)))
	}
	assert.Equal(t, Active, r.State())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, uint32(3000), r.ElapsedMicros())
}

func TestDurationBound(t *testing.T) {
	r := New(0, 2500)
	require.NoError(t, r.Append(fr(1000)))
	require.NoError(t, r.Append(fr(2000)))

	err := r.Append(fr(4000))
	require.ErrorIs(t, err, ErrRecordingEnded)
	assert.Equal(t, Stopped, r.State())
	assert.Equal(t, 3, r.Len(), "the frame that completes the duration is kept")

	assert.NoError(t, r.Append(fr(5000)), "later frames are discarded without error")
	assert.Equal(t, 3, r.Len())
	assert.False(t, r.IsRecording())
}

func TestAppendAfterStopDiscards(t *testing.T) {
	r := New(0, 0)
	require.NoError(t, r.Append(fr(0)))
	r.Stop()

	require.NoError(t, r.Append(fr(1000)))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, uint64(0), r.Back().Pts)
	assert.Equal(t, Stopped, r.State())
}

func TestIdleIsRecording(t *testing.T) {
	r := New(0, 0)
	assert.Equal(t, Idle, r.State())
	assert.True(t, r.IsRecording(), "a fresh record accepts frames")

	r.Stop()
	assert.False(t, r.IsRecording())
}

func TestPositiveShift(t *testing.T) {
	r := New(1_000_000, 0)

	for _, pts := range []uint64{0, 300_000, 600_000, 900_000} {
		require.NoError(t, r.Append(fr(pts)))
		assert.Equal(t, WaitingForShift, r.State())
		assert.Equal(t, 1, r.Len(), "only the newest preview frame is buffered")
		assert.Equal(t, pts, r.Back().Pts)
	}

	require.NoError(t, r.Append(fr(1_000_000)))
	assert.Equal(t, Active, r.State())
	assert.Equal(t, []uint64{1_000_000}, ptsOf(r))

	require.NoError(t, r.Append(fr(1_100_000)))
	assert.Equal(t, []uint64{1_000_000, 1_100_000}, ptsOf(r))
}

func TestPositiveShiftClock(t *testing.T) {
	r := New(1_000_000, 0)
	assert.Equal(t, int64(-1_000_000), r.Clock(true))

	require.NoError(t, r.Append(fr(500)))
	require.NoError(t, r.Append(fr(400_500)))
	assert.Equal(t, int64(-600_000), r.Clock(true))
}

func TestNegativeShiftPreRoll(t *testing.T) {
	r := New(-2000, 0)
	for _, pts := range []uint64{0, 1000, 2000, 3000, 4000, 5000} {
		require.NoError(t, r.Append(fr(pts)))
	}
	assert.Equal(t, WaitingForShift, r.State())
	assert.Equal(t, []uint64{3000, 4000, 5000}, ptsOf(r))
	for _, f := range r.Frames() {
		assert.GreaterOrEqual(t, int64(f.Pts), int64(5000)-2000)
	}

	r.Start()
	assert.Equal(t, Active, r.State())
	require.NoError(t, r.Append(fr(6000)))
	require.NoError(t, r.Append(fr(7000)))
	assert.Equal(t, []uint64{3000, 4000, 5000, 6000, 7000}, ptsOf(r), "no trimming once started")
}

func TestNegativeShiftKeepsTail(t *testing.T) {
	r := New(-10, 0)
	require.NoError(t, r.Append(fr(0)))
	require.NoError(t, r.Append(fr(1000)))
	assert.Equal(t, []uint64{1000}, ptsOf(r))
}

func TestSeekAndNext(t *testing.T) {
	r := New(0, 0)
	for _, pts := range []uint64{10, 20, 30} {
		require.NoError(t, r.Append(fr(pts)))
	}

	require.NoError(t, r.Seek(1))
	assert.Equal(t, 1, r.ReadIndex())
	assert.Equal(t, uint64(20), r.Next().Pts)
	assert.Equal(t, uint64(30), r.Next().Pts)
	assert.True(t, r.AtEnd())
	assert.Nil(t, r.Next())

	err := r.Seek(3)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.Equal(t, 3, r.ReadIndex(), "failed seek leaves the cursor alone")

	require.NoError(t, r.Seek(0))
	assert.Equal(t, 0, r.PlayProgress())
	r.Next()
	assert.Equal(t, 33, r.PlayProgress())
	assert.Equal(t, int64(10), r.Clock(false))
}

func TestCursorFollowsEviction(t *testing.T) {
	r := New(-1500, 0)
	require.NoError(t, r.Append(fr(0)))
	require.NoError(t, r.Append(fr(1000)))
	require.NoError(t, r.Seek(1))

	require.NoError(t, r.Append(fr(2000))) // evicts pts 0
	assert.Equal(t, 0, r.ReadIndex())
	assert.Equal(t, uint64(1000), r.Next().Pts)
}

func TestLongPreRollWindow(t *testing.T) {
	r := New(-50_000, 0)
	for i := uint64(0); i < 200; i++ {
		require.NoError(t, r.Append(fr(i*1000)))
	}
	// window keeps pts >= 199000-50000
	assert.Equal(t, 51, r.Len())
	assert.Equal(t, uint64(149_000), r.Front().Pts)
	assert.Equal(t, uint32(50_000), r.ElapsedMicros())

	r.Reset()
	assert.Nil(t, r.Front())
	assert.Nil(t, r.Back())
}

func TestDurationProgress(t *testing.T) {
	r := New(0, 10_000)
	assert.Equal(t, 0, r.DurationProgress())
	require.NoError(t, r.Append(fr(0)))
	require.NoError(t, r.Append(fr(2500)))
	assert.Equal(t, 25, r.DurationProgress())
}

func TestStopAndReset(t *testing.T) {
	r := New(0, 0)
	require.NoError(t, r.Append(fr(1)))
	r.Stop()
	r.Start()
	assert.Equal(t, Stopped, r.State(), "start cannot revive a stopped record")

	r.Reset()
	assert.Equal(t, Idle, r.State())
	assert.Equal(t, 0, r.Len())
	require.NoError(t, r.Append(fr(5)))
}
