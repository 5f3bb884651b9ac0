package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the encoded size of a frame record before the pixel data:
// width u16, height u16, pts u64, format u32.
const HeaderSize = 16

var ErrBadRecord = errors.New("malformed frame record")

// RecordSize is the encoded length of f including its header.
func (f *Frame) RecordSize() int {
	return HeaderSize + len(f.Data)
}

// MarshalBinary encodes the frame as a little-endian frame record.
func (f *Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, f.RecordSize())
	f.putHeader(buf)
	copy(buf[HeaderSize:], f.Data)
	return buf, nil
}

// WriteTo writes the frame record to w without building an intermediate copy
// of the payload.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	var hdr [HeaderSize]byte
	f.putHeader(hdr[:])
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(f.Data)
	return int64(n + m), err
}

func (f *Frame) putHeader(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], f.Width)
	binary.LittleEndian.PutUint16(b[2:], f.Height)
	binary.LittleEndian.PutUint64(b[4:], f.Pts)
	binary.LittleEndian.PutUint32(b[12:], uint32(f.Format))
}

// UnmarshalBinary decodes a frame record. The payload length must match the
// header's dimensions exactly.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrBadRecord, len(b))
	}
	f.Width = binary.LittleEndian.Uint16(b[0:])
	f.Height = binary.LittleEndian.Uint16(b[2:])
	f.Pts = binary.LittleEndian.Uint64(b[4:])
	f.Format = PixelFormat(binary.LittleEndian.Uint32(b[12:]))

	size, err := Size(f.Width, f.Height, f.Format)
	if err != nil {
		return err
	}
	if len(b)-HeaderSize != size {
		return fmt.Errorf("%w: payload %d bytes, %dx%d %s needs %d",
			ErrBadRecord, len(b)-HeaderSize, f.Width, f.Height, f.Format, size)
	}
	f.Data = make([]byte, size)
	copy(f.Data, b[HeaderSize:])
	return nil
}

// ReadRecord reads one frame record of exactly size bytes from r.
func ReadRecord(r io.Reader, size uint32) (*Frame, error) {
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: record size %d", ErrBadRecord, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	f := new(Frame)
	if err := f.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return f, nil
}
