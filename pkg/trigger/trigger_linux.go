//go:build linux

package trigger

import (
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"
)

// Watch requests cfg.Line as a pulled up input and feeds falling edges to b.
// Close the returned line to release it.
func Watch(cfg Config, b *Button) (io.Closer, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventFallingEdge {
				b.Press(evt.Timestamp)
			}
		}),
	}
	if cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
	}

	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Line, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request line %d on %s: %w", cfg.Line, cfg.Chip, err)
	}
	return line, nil
}
