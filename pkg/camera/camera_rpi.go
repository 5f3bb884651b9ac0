//go:build linux && arm64

package camera

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/wachiwi/kcamera/pkg/frame"
)

// streamCommand builds an rpicam-vid (or libcamera-vid on older releases)
// invocation writing raw YUV420 to stdout.
func streamCommand(ctx context.Context, cfg DriverConfig) (*exec.Cmd, frame.PixelFormat, error) {
	cmdName := "rpicam-vid"
	if _, err := exec.LookPath(cmdName); err != nil {
		cmdName = "libcamera-vid"
		if _, err := exec.LookPath(cmdName); err != nil {
			return nil, 0, fmt.Errorf("neither rpicam-vid nor libcamera-vid found")
		}
	}

	c := cfg.Controls
	args := []string{
		"--width", fmt.Sprintf("%d", cfg.Width),
		"--height", fmt.Sprintf("%d", cfg.Height),
		"--timeout", "0", // Run indefinitely
		"--nopreview",
		"--codec", "yuv420",
		"--output", "-",
		"--framerate", fmt.Sprintf("%d", cfg.Framerate),
		"--ev", fmt.Sprintf("%.2f", c.ExposureValue),
		"--brightness", fmt.Sprintf("%.2f", c.Brightness),
		"--contrast", fmt.Sprintf("%.2f", c.Contrast),
		"--saturation", fmt.Sprintf("%.2f", c.Saturation),
		"--metering", "average",
	}
	if c.RedGain > 0 || c.BlueGain > 0 {
		args = append(args, "--awbgains", fmt.Sprintf("%.2f,%.2f", c.RedGain, c.BlueGain))
	} else {
		args = append(args, "--awb", "auto")
	}
	if c.ExposureTime > 0 {
		args = append(args, "--shutter", fmt.Sprintf("%d", c.ExposureTime.Microseconds()))
	}
	if c.HFlip {
		args = append(args, "--hflip")
	}
	if c.VFlip {
		args = append(args, "--vflip")
	}

	return exec.CommandContext(ctx, cmdName, args...), frame.YUV420, nil
}
