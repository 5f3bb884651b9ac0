package camera

import (
	"context"

	"github.com/wachiwi/kcamera/pkg/frame"
)

// DriverConfig describes the stream a driver must produce.
type DriverConfig struct {
	Width     uint16
	Height    uint16
	Framerate uint
	Controls  Controls
}

// FrameSink receives raw frames from a driver. ts is the driver's own
// monotonic timestamp in microseconds. data is only valid for the duration
// of the call.
type FrameSink func(width, height uint16, format frame.PixelFormat, ts uint64, data []byte)

// Driver is the sensor-facing side of a Session. Run blocks, delivering
// frames to sink, until ctx is cancelled or the sensor fails.
type Driver interface {
	Name() string
	Run(ctx context.Context, cfg DriverConfig, sink FrameSink) error
	// ApplyControls pushes controls to a running stream.
	ApplyControls(c Controls) error
}
