package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wachiwi/kcamera/pkg/clip"
	"github.com/wachiwi/kcamera/pkg/frame"
	"github.com/wachiwi/kcamera/pkg/record"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestModes(t *testing.T) {
	out, err := run(t, "modes")
	require.NoError(t, err)
	assert.Contains(t, out, "640x480x10")
	assert.Contains(t, out, "4-90")
}

func TestInspect(t *testing.T) {
	rec := record.New(0, 0)
	for _, pts := range []uint64{0, 40_000, 80_000} {
		require.NoError(t, rec.Append(&frame.Frame{Width: 2, Height: 2, Pts: pts, Format: frame.BGR888, Data: make([]byte, 12)}))
	}
	path := filepath.Join(t.TempDir(), "test.kclip")
	_, err := clip.SaveFile(context.Background(), path, rec)
	require.NoError(t, err)

	out, err := run(t, "inspect", "--frames", path)
	require.NoError(t, err)
	assert.Contains(t, out, "frames:   3")
	assert.Contains(t, out, "duration: 80ms")
	assert.Equal(t, 3, strings.Count(out, "pts="))

	out, err = run(t, "inspect", "--frames", "--from", "2", path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "pts="))
	assert.Contains(t, out, "pts=80000")
	assert.Contains(t, out, "frames:   3")

	_, err = run(t, "inspect", "--frames", "--from", "3", path)
	assert.Error(t, err, "seeking past the last frame fails")

	_, err = run(t, "inspect", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRecordWithPattern(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KCAMERA_CLIPS_DIR", dir)
	t.Setenv("KCAMERA_LOG_LEVEL", "error")
	t.Setenv("KCAMERA_CAMERA_MODE", "320x240x10")
	t.Setenv("KCAMERA_CAMERA_WIDTH", "320")
	t.Setenv("KCAMERA_CAMERA_HEIGHT", "240")
	t.Chdir(t.TempDir())

	out, err := run(t, "record", "--driver", "pattern", "--duration", "200ms", "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, dir)
	assert.Contains(t, out, "frames")
}

func TestUnknownDriver(t *testing.T) {
	_, err := newDriver("webcam")
	assert.Error(t, err)
}
