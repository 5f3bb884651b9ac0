//go:build darwin

package camera

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/wachiwi/kcamera/pkg/frame"
)

// streamCommand captures from the default macOS webcam using ffmpeg and
// converts to raw BGR24 so local development sees real images.
func streamCommand(ctx context.Context, cfg DriverConfig) (*exec.Cmd, frame.PixelFormat, error) {
	// -framerate MUST be 30 for most Mac cameras (they don't support arbitrary framerates)
	fps := 30

	filters := fmt.Sprintf("fps=%d", cfg.Framerate)
	if cfg.Controls.HFlip {
		filters += ",hflip"
	}
	if cfg.Controls.VFlip {
		filters += ",vflip"
	}

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "avfoundation",
		"-framerate", fmt.Sprintf("%d", fps),
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-i", "0", // Device 0 = default camera
		"-vf", filters,
		"-pix_fmt", "bgr24",
		"-f", "rawvideo",
		"-hide_banner",
		"-loglevel", "error",
		"-",
	)
	return cmd, frame.BGR888, nil
}
