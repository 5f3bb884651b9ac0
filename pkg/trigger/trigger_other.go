//go:build !linux

package trigger

import "io"

func Watch(cfg Config, b *Button) (io.Closer, error) {
	return nil, ErrUnsupported
}
