// Package tracing wires pkg/tracing's OpenTelemetry provider to the
// parsed config.Config, the thin wiring layer.
package tracing

import (
	"ndnrtc/pkg/config"
	"ndnrtc/pkg/tracing"
)

// Setup initializes a tracer provider from cfg's Tracing section. The
// returned provider's Shutdown must be called on process exit.
func Setup(cfg *config.Config) (*tracing.TracerProvider, error) {
	return tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: "production",
		SampleRate:  cfg.Tracing.SampleRatio,
	})
}
