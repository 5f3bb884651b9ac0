package camera

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	framesReceived  metric.Int64Counter
	framesDropped   metric.Int64Counter
	recordingsEnded metric.Int64Counter
	restartsCounter metric.Int64Counter
	fpsGauge        metric.Float64Gauge
	bufferedGauge   metric.Int64Gauge
)

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/kcamera/pkg/camera")
	fallback := noop.NewMeterProvider().Meter("")

	framesReceived, err = meter.Int64Counter("camera.frames.received",
		metric.WithDescription("Frames delivered by the sensor driver"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		slog.Error("Failed to create frames counter", "error", err)
		framesReceived, _ = fallback.Int64Counter("camera.frames.received")
	}

	framesDropped, err = meter.Int64Counter("camera.frames.dropped",
		metric.WithDescription("Frames discarded before reaching a consumer"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		slog.Error("Failed to create dropped frames counter", "error", err)
		framesDropped, _ = fallback.Int64Counter("camera.frames.dropped")
	}

	recordingsEnded, err = meter.Int64Counter("camera.recordings.ended",
		metric.WithDescription("Recordings that stopped accepting frames"),
		metric.WithUnit("{recording}"),
	)
	if err != nil {
		slog.Error("Failed to create recordings counter", "error", err)
		recordingsEnded, _ = fallback.Int64Counter("camera.recordings.ended")
	}

	restartsCounter, err = meter.Int64Counter("camera.restarts",
		metric.WithDescription("Capture restarts caused by parameter changes"),
		metric.WithUnit("{restart}"),
	)
	if err != nil {
		slog.Error("Failed to create restarts counter", "error", err)
		restartsCounter, _ = fallback.Int64Counter("camera.restarts")
	}

	fpsGauge, err = meter.Float64Gauge("camera.fps",
		metric.WithDescription("Measured capture framerate"),
		metric.WithUnit("{frame}/s"),
	)
	if err != nil {
		slog.Error("Failed to create fps gauge", "error", err)
		fpsGauge, _ = fallback.Float64Gauge("camera.fps")
	}

	bufferedGauge, err = meter.Int64Gauge("camera.record.frames",
		metric.WithDescription("Frames held by the active recording"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		slog.Error("Failed to create recording size gauge", "error", err)
		bufferedGauge, _ = fallback.Int64Gauge("camera.record.frames")
	}
}

func recordDrop(reason string) {
	framesDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func recordEnd(reason string) {
	recordingsEnded.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
