package frame

import (
	"bytes"
	"errors"
	"testing"
)

func TestSize(t *testing.T) {
	cases := []struct {
		w, h   uint16
		format PixelFormat
		want   int
	}{
		{640, 480, BGR888, 921600},
		{640, 480, YUV420, 460800},
		{2, 2, BGR888, 12},
	}
	for _, c := range cases {
		got, err := Size(c.w, c.h, c.format)
		if err != nil {
			t.Fatalf("Size(%d,%d,%s): %v", c.w, c.h, c.format, err)
		}
		if got != c.want {
			t.Errorf("Size(%d,%d,%s) = %d, want %d", c.w, c.h, c.format, got, c.want)
		}
	}

	if _, err := Size(2, 2, PixelFormat(7)); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestNewCopiesPayload(t *testing.T) {
	data := bytes.Repeat([]byte{9}, 20) // 12 needed, the rest is stride padding
	f, err := New(2, 2, BGR888, 1000, data, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.Len() != 12 {
		t.Errorf("expected 12 byte payload, got %d", f.Len())
	}
	data[0] = 1
	if f.Data[0] != 9 {
		t.Error("frame payload aliases the driver buffer")
	}

	if _, err := New(2, 2, BGR888, 0, data[:5], nil); !errors.Is(err, ErrShortPayload) {
		t.Errorf("expected ErrShortPayload, got %v", err)
	}
	if _, err := New(2, 2, BGR888, 0, data, Heap{MaxBytes: 8}); !errors.Is(err, ErrAllocation) {
		t.Errorf("expected ErrAllocation, got %v", err)
	}
}

func TestRecordEncoding(t *testing.T) {
	f := &Frame{Width: 2, Height: 1, Pts: 0x0102030405060708, Format: BGR888, Data: []byte{1, 2, 3, 4, 5, 6}}

	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	want := []byte{
		2, 0, 1, 0,
		8, 7, 6, 5, 4, 3, 2, 1,
		0, 0, 0, 0,
		1, 2, 3, 4, 5, 6,
	}
	if !bytes.Equal(b, want) {
		t.Fatalf("encoded record = %v, want %v", b, want)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("WriteTo differs from MarshalBinary")
	}

	got, err := ReadRecord(&buf, uint32(len(want)))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.Pts != f.Pts || got.Width != 2 || got.Height != 1 || !bytes.Equal(got.Data, f.Data) {
		t.Errorf("decoded frame mismatch: %+v", got)
	}
}

func TestUnmarshalRejectsWrongPayload(t *testing.T) {
	b := []byte{2, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3}
	var f Frame
	if err := f.UnmarshalBinary(b); !errors.Is(err, ErrBadRecord) {
		t.Errorf("expected ErrBadRecord, got %v", err)
	}
	if err := f.UnmarshalBinary(b[:4]); !errors.Is(err, ErrBadRecord) {
		t.Errorf("expected ErrBadRecord for short header, got %v", err)
	}
}
