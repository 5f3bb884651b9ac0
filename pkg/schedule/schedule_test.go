package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wachiwi/kcamera/pkg/catalog"
)

type fakeCapturer struct {
	mu       sync.Mutex
	calls    int
	duration time.Duration
	err      error
}

func (f *fakeCapturer) Capture(ctx context.Context, source string, d time.Duration) (catalog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.duration = d
	return catalog.Entry{Source: source}, f.err
}

type fakePruner struct {
	retention time.Duration
}

func (f *fakePruner) Prune(retention time.Duration) (int, error) {
	f.retention = retention
	return 2, nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(Config{Spec: "*/5 * * * *", Location: "UTC", Retention: time.Hour}, &fakeCapturer{}, &fakePruner{}, quiet())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s, err = New(Config{}, &fakeCapturer{}, nil, quiet())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Entries())
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{Spec: "not a cron"}, &fakeCapturer{}, nil, quiet())
	assert.Error(t, err)

	_, err = New(Config{Spec: "@hourly", Location: "Nowhere/City"}, &fakeCapturer{}, nil, quiet())
	assert.Error(t, err)
}

func TestCaptureJob(t *testing.T) {
	c := &fakeCapturer{}
	CaptureJob(context.Background(), c, 5*time.Second, quiet()).Run()
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, 5*time.Second, c.duration)

	c.err = errors.New("boom")
	CaptureJob(context.Background(), c, 0, quiet()).Run()
	assert.Equal(t, 2, c.calls)
}

func TestPruneJob(t *testing.T) {
	p := &fakePruner{}
	PruneJob(p, 48*time.Hour, quiet()).Run()
	assert.Equal(t, 48*time.Hour, p.retention)
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{Spec: "@every 1h"}, &fakeCapturer{}, nil, quiet())
	require.NoError(t, err)
	s.Start()
	assert.False(t, s.Next().IsZero())
	s.Stop()
}
