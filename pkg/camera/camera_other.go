//go:build !darwin && !(linux && arm64)

package camera

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/wachiwi/kcamera/pkg/frame"
)

// streamCommand is a stub for platforms without a supported capture tool.
func streamCommand(ctx context.Context, cfg DriverConfig) (*exec.Cmd, frame.PixelFormat, error) {
	return nil, 0, fmt.Errorf("raspberry pi camera not available on this platform")
}
