// Package clip reads and writes recordings as a flat sequence of frame
// records. Each record is a little-endian magic number, a length and the
// encoded frame:
//
//	magic u32 (0xC1AB511C) | size u32 | width u16 | height u16 | pts u64 | format u32 | pixels
package clip

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wachiwi/kcamera/pkg/frame"
	"github.com/wachiwi/kcamera/pkg/record"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Magic starts every record.
const Magic uint32 = 0xC1AB511C

// MaxRecordSize bounds the size field so a damaged header cannot request an
// arbitrary allocation.
const MaxRecordSize = 64 << 20

var (
	ErrBadMagic      = errors.New("magic number is missing")
	ErrTruncated     = errors.New("truncated record")
	ErrMemoryReserve = errors.New("memory reserve has been exceeded")
)

var tracer = otel.Tracer("github.com/wachiwi/kcamera/pkg/clip")

// CorruptError reports the record at which a clip stopped parsing.
type CorruptError struct {
	Index int
	Err   error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt clip at frame %d: %v", e.Index, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Save writes every frame of rec to w and returns the number of bytes
// written. The read cursor of rec is left alone.
func Save(w io.Writer, rec *record.Record) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for i, f := range rec.Frames() {
		n, err := writeRecord(bw, f)
		total += n
		if err != nil {
			return total, fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return total, fmt.Errorf("flush clip: %w", err)
	}
	return total, nil
}

func writeRecord(w io.Writer, f *frame.Frame) (int64, error) {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(f.RecordSize()))
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := f.WriteTo(w)
	return int64(n) + m, err
}

// ReserveChecker reports whether loading should stop to keep memory free.
type ReserveChecker interface {
	ReserveExceeded() bool
}

// LoadOptions tune Load.
type LoadOptions struct {
	// Reserve, if set, is consulted before every record.
	Reserve ReserveChecker
}

// Reader iterates over the records of a clip.
type Reader struct {
	r     *bufio.Reader
	index int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Index is the number of records read so far.
func (cr *Reader) Index() int { return cr.index }

// Next returns the next frame, io.EOF at a clean end of the clip, or a
// *CorruptError.
func (cr *Reader) Next() (*frame.Frame, error) {
	var hdr [8]byte
	n, err := io.ReadFull(cr.r, hdr[:4])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, cr.corrupt(ErrTruncated)
	}
	if binary.LittleEndian.Uint32(hdr[:4]) != Magic {
		return nil, cr.corrupt(ErrBadMagic)
	}
	if _, err := io.ReadFull(cr.r, hdr[4:]); err != nil {
		return nil, cr.corrupt(ErrTruncated)
	}
	size := binary.LittleEndian.Uint32(hdr[4:])
	if size > MaxRecordSize {
		return nil, cr.corrupt(fmt.Errorf("%w: record size %d", frame.ErrBadRecord, size))
	}

	f, err := frame.ReadRecord(cr.r, size)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		return nil, cr.corrupt(err)
	}
	cr.index++
	return f, nil
}

func (cr *Reader) corrupt(err error) error {
	return &CorruptError{Index: cr.index, Err: err}
}

// Load reads a whole clip into a stopped record.
func Load(r io.Reader, opts LoadOptions) (*record.Record, error) {
	rec := record.New(0, 0)
	cr := NewReader(r)
	for {
		if opts.Reserve != nil && opts.Reserve.ReserveExceeded() {
			return nil, fmt.Errorf("load frame %d: %w", cr.Index(), ErrMemoryReserve)
		}
		f, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := rec.Append(f); err != nil {
			return nil, fmt.Errorf("append frame %d: %w", cr.Index()-1, err)
		}
	}
	rec.Stop()
	return rec, nil
}

// SaveFile writes rec to path.
func SaveFile(ctx context.Context, path string, rec *record.Record) (int64, error) {
	_, span := tracer.Start(ctx, "clip.SaveFile", trace.WithAttributes(attribute.String("clip.path", path)))
	defer span.End()

	f, err := os.Create(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return 0, fmt.Errorf("unable to open file: %w", err)
	}
	n, err := Save(f, rec)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	span.SetAttributes(attribute.Int64("clip.bytes", n), attribute.Int("clip.frames", rec.Len()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return n, err
	}
	return n, nil
}

// LoadFile reads the clip at path.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*record.Record, error) {
	_, span := tracer.Start(ctx, "clip.LoadFile", trace.WithAttributes(attribute.String("clip.path", path)))
	defer span.End()

	f, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close()

	rec, err := Load(f, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("clip.frames", rec.Len()))
	return rec, nil
}

// Info summarizes a clip without keeping its pixels.
type Info struct {
	Frames        int
	Width         uint16
	Height        uint16
	Format        frame.PixelFormat
	FirstPts      uint64
	LastPts       uint64
	ElapsedMicros uint64
	Bytes         int64
}

// Inspect walks a clip and calls fn (if not nil) for every frame.
func Inspect(r io.Reader, fn func(index int, f *frame.Frame)) (Info, error) {
	var info Info
	cr := NewReader(r)
	for {
		f, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return info, err
		}
		if info.Frames == 0 {
			info.Width, info.Height, info.Format = f.Width, f.Height, f.Format
			info.FirstPts = f.Pts
		}
		info.LastPts = f.Pts
		info.Bytes += int64(8 + f.RecordSize())
		if fn != nil {
			fn(info.Frames, f)
		}
		info.Frames++
	}
	if info.Frames > 0 {
		info.ElapsedMicros = info.LastPts - info.FirstPts
	}
	return info, nil
}
