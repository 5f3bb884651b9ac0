package clip

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wachiwi/kcamera/pkg/frame"
	"github.com/wachiwi/kcamera/pkg/record"
)

func testRecord(t *testing.T, pts ...uint64) *record.Record {
	t.Helper()
	rec := record.New(0, 0)
	for i, p := range pts {
		data := bytes.Repeat([]byte{byte(i + 1)}, 12)
		require.NoError(t, rec.Append(&frame.Frame{Width: 2, Height: 2, Pts: p, Format: frame.BGR888, Data: data}))
	}
	return rec
}

func encode(t *testing.T, rec *record.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := Save(&buf, rec)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	rec := testRecord(t, 1000, 2000, 4000)
	require.NoError(t, rec.Seek(2))
	data := encode(t, rec)
	assert.Equal(t, 2, rec.ReadIndex(), "saving leaves the cursor alone")
	assert.Len(t, data, 3*(8+frame.HeaderSize+12))

	loaded, err := Load(bytes.NewReader(data), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, record.Stopped, loaded.State())
	require.Equal(t, 3, loaded.Len())
	assert.Equal(t, uint32(3000), loaded.ElapsedMicros())

	for i, f := range loaded.Frames() {
		orig, _ := rec.At(i)
		assert.Equal(t, orig.Pts, f.Pts)
		assert.Equal(t, orig.Data, f.Data)
		assert.Equal(t, orig.Format, f.Format)
	}
}

func TestRecordLayout(t *testing.T) {
	data := encode(t, testRecord(t, 7))
	assert.Equal(t, Magic, binary.LittleEndian.Uint32(data[0:]))
	assert.Equal(t, uint32(frame.HeaderSize+12), binary.LittleEndian.Uint32(data[4:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[8:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[10:]))
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(data[12:]))
	assert.Equal(t, uint32(frame.BGR888), binary.LittleEndian.Uint32(data[20:]))
}

func TestEmptyClip(t *testing.T) {
	loaded, err := Load(bytes.NewReader(nil), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestTruncatedRecord(t *testing.T) {
	data := encode(t, testRecord(t, 1, 2, 3))
	recordLen := len(data) / 3

	_, err := Load(bytes.NewReader(data[:2*recordLen+10]), LoadOptions{})
	var ce *CorruptError
	require.True(t, errors.As(err, &ce), "expected CorruptError, got %v", err)
	assert.Equal(t, 2, ce.Index)
	assert.ErrorIs(t, err, ErrTruncated)

	// a partial magic number is also truncation
	_, err = Load(bytes.NewReader(data[:recordLen+2]), LoadOptions{})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Index)
}

func TestBadMagic(t *testing.T) {
	data := encode(t, testRecord(t, 1, 2))
	recordLen := len(data) / 2
	data[recordLen] ^= 0xFF

	_, err := Load(bytes.NewReader(data), LoadOptions{})
	var ce *CorruptError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Index)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestOversizedRecord(t *testing.T) {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], MaxRecordSize+1)

	_, err := Load(bytes.NewReader(hdr[:]), LoadOptions{})
	assert.ErrorIs(t, err, frame.ErrBadRecord)
}

type reserveAfter struct{ n int }

func (r *reserveAfter) ReserveExceeded() bool {
	r.n--
	return r.n < 0
}

func TestLoadStopsAtMemoryReserve(t *testing.T) {
	data := encode(t, testRecord(t, 1, 2, 3))
	_, err := Load(bytes.NewReader(data), LoadOptions{Reserve: &reserveAfter{n: 2}})
	assert.ErrorIs(t, err, ErrMemoryReserve)
}

func TestFileHelpersAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.kc")
	rec := testRecord(t, 100, 200, 350)

	n, err := SaveFile(context.Background(), path, rec)
	require.NoError(t, err)

	loaded, err := LoadFile(context.Background(), path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	var seen []uint64
	info, err := Inspect(bytes.NewReader(encode(t, rec)), func(i int, f *frame.Frame) {
		seen = append(seen, f.Pts)
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 200, 350}, seen)
	assert.Equal(t, 3, info.Frames)
	assert.Equal(t, uint64(250), info.ElapsedMicros)
	assert.Equal(t, n, info.Bytes)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.kc"), LoadOptions{})
	assert.Error(t, err)
}
