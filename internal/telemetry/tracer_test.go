package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/ragdesk/console/internal/pkg/config"
)

func TestInitTracer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     config.TelemetryConfig
		wantErr bool
	}{
		{"none", config.TelemetryConfig{Exporter: "none"}, false},
		{"stdout", config.TelemetryConfig{Exporter: "stdout", ServiceName: "console-test"}, false},
		{"unknown", config.TelemetryConfig{Exporter: "zipkin"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := InitTracer(tt.cfg, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("InitTracer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			_, span := otel.Tracer("test").Start(context.Background(), "op")
			if !span.SpanContext().IsValid() {
				t.Error("span context should be valid once a provider is installed")
			}
			span.End()

			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown error = %v", err)
			}
		})
	}
}
