package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestSetupRequiresEndpoint(t *testing.T) {
	if _, err := Setup(context.Background(), Config{ServiceName: "kcamera"}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestSetupAndShutdown(t *testing.T) {
	// gRPC exporters connect lazily, so setup succeeds without a collector.
	shutdown, err := Setup(context.Background(), Config{
		ServiceName: "kcamera-test",
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
		Interval:    time.Hour,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// Shutdown may report the unreachable collector; it must not hang.
	_ = shutdown(ctx)
}
