package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wachiwi/kcamera/pkg/camera"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "pipe", cfg.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Clips.Retention)

	p := cfg.Camera.Params()
	d := camera.DefaultParams()
	assert.Equal(t, d.Mode, p.Mode)
	assert.Equal(t, d.Framerate, p.Framerate)
	assert.Equal(t, d.MaxLatency, p.MaxLatency)
	assert.Equal(t, camera.MaxShutterSpeed(d.Framerate), p.ShutterSpeed)
	assert.Equal(t, d.MemReserve, p.MemReserve)
}

func TestFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "kcamera.yaml")
	yaml := `
driver: pattern
camera:
  mode: 320x240x10
  width: 320
  height: 240
  framerate: 15
  start_shift: -2s
  duration: 10s
schedule:
  spec: "*/5 * * * *"
`
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))
	t.Setenv("KCAMERA_HTTP_ADDR", ":9090")

	cfg, err := Load(Options{File: file})
	require.NoError(t, err)

	assert.Equal(t, "pattern", cfg.Driver)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule.Spec)

	p := cfg.Camera.Params()
	assert.Equal(t, "320x240x10", p.Mode)
	assert.Equal(t, uint(15), p.Framerate)
	assert.Equal(t, int64(-2_000_000), p.StartShift)
	assert.Equal(t, uint32(10_000_000), p.Duration)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("KCAMERA_HTTP_USER=admin\n"), 0o644))
	t.Setenv("KCAMERA_HTTP_USER", "")
	os.Unsetenv("KCAMERA_HTTP_USER")
	t.Chdir(dir)

	cfg, err := Load(Options{EnvFiles: []string{env, filepath.Join(dir, "missing.env")}})
	require.NoError(t, err)
	assert.Equal(t, "admin", cfg.HTTP.User)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}
