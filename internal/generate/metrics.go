package generate

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type meters struct {
	calls      metric.Int64Counter
	failures   metric.Int64Counter
	characters metric.Int64Counter
	bytesRecv  metric.Int64Counter
	latency    metric.Float64Histogram
}

func newMeters() (*meters, error) {
	meter := otel.Meter("github.com/vaanilabs/vaachak/internal/generate")

	calls, err := meter.Int64Counter("vaachak.synth.calls",
		metric.WithDescription("Total synthesis calls issued"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("vaachak.synth.failures",
		metric.WithDescription("Synthesis calls that failed"))
	if err != nil {
		return nil, err
	}
	characters, err := meter.Int64Counter("vaachak.synth.characters",
		metric.WithDescription("Characters submitted for synthesis"))
	if err != nil {
		return nil, err
	}
	bytesRecv, err := meter.Int64Counter("vaachak.synth.bytes_received",
		metric.WithDescription("Audio bytes received from the synthesis backend"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("vaachak.synth.call_duration_ms",
		metric.WithDescription("Per-call synthesis latency in milliseconds"))
	if err != nil {
		return nil, err
	}

	return &meters{
		calls:      calls,
		failures:   failures,
		characters: characters,
		bytesRecv:  bytesRecv,
		latency:    latency,
	}, nil
}
