package utils

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/cppla/rewards/config"
)

func TestSetupTracingOptIn(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.AppConfig
	}{
		{"no endpoint", config.AppConfig{}},
		{"disabled", config.AppConfig{TraceEndpoint: "http://127.0.0.1:4318", TraceDisabled: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := otel.GetTracerProvider()
			shutdown, err := SetupTracing(context.Background(), tc.cfg, "rewards")
			if err != nil {
				t.Fatalf("SetupTracing() error = %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown() error = %v", err)
			}
			if otel.GetTracerProvider() != before {
				t.Error("global tracer provider replaced while tracing is off")
			}
		})
	}
}

func TestSetupTracingRegistersProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	cfg := config.AppConfig{TraceEndpoint: "http://127.0.0.1:4318/v1/traces"}
	shutdown, err := SetupTracing(context.Background(), cfg, "rewards")
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}
	if otel.GetTracerProvider() == before {
		t.Error("global tracer provider not registered")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
