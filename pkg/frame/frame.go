package frame

import (
	"errors"
	"fmt"
)

// PixelFormat identifies the memory layout of a frame payload.
type PixelFormat uint32

const (
	// BGR888 is packed 8-bit blue, green, red.
	BGR888 PixelFormat = 0
	// YUV420 is planar Y followed by quarter-size U and V planes.
	YUV420 PixelFormat = 1
)

var (
	ErrUnknownFormat = errors.New("unknown pixel format")
	ErrShortPayload  = errors.New("frame payload shorter than width*height*bpp")
	ErrAllocation    = errors.New("frame allocation failed")
)

func (p PixelFormat) String() string {
	switch p {
	case BGR888:
		return "bgr888"
	case YUV420:
		return "yuv420"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint32(p))
	}
}

// ParseFormat maps a format name back to its PixelFormat.
func ParseFormat(s string) (PixelFormat, error) {
	switch s {
	case "bgr888", "bgr24", "BGR888":
		return BGR888, nil
	case "yuv420", "YUV420", "i420":
		return YUV420, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Size returns the payload size in bytes of a width x height frame.
func Size(width, height uint16, format PixelFormat) (int, error) {
	px := int(width) * int(height)
	switch format {
	case BGR888:
		return px * 3, nil
	case YUV420:
		return px * 3 / 2, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownFormat, uint32(format))
}

// Frame is a single captured image. It must not be modified once built, so
// the same Frame can be handed to any number of readers.
type Frame struct {
	Width  uint16
	Height uint16
	Pts    uint64 // microseconds since capture start
	Format PixelFormat
	Data   []byte
}

// New copies the first Size bytes of data into a buffer taken from alloc.
// A nil alloc uses the heap.
func New(width, height uint16, format PixelFormat, pts uint64, data []byte, alloc Allocator) (*Frame, error) {
	size, err := Size(width, height, format)
	if err != nil {
		return nil, err
	}
	if len(data) < size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShortPayload, len(data), size)
	}
	if alloc == nil {
		alloc = Heap{}
	}
	buf, err := alloc.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(buf, data[:size])
	return &Frame{Width: width, Height: height, Pts: pts, Format: format, Data: buf}, nil
}

// Len is the payload size in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

// Allocator hands out payload buffers for captured frames.
type Allocator interface {
	Alloc(size int) ([]byte, error)
}

// Heap allocates from the Go heap. A non-zero MaxBytes refuses any buffer
// larger than that.
type Heap struct {
	MaxBytes int
}

func (h Heap) Alloc(size int) ([]byte, error) {
	if size < 0 || (h.MaxBytes > 0 && size > h.MaxBytes) {
		return nil, fmt.Errorf("%w: %d bytes", ErrAllocation, size)
	}
	return make([]byte, size), nil
}
