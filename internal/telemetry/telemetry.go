// Package telemetry provides OpenTelemetry metrics for focal.
//
// Telemetry is disabled by default and then installs a no-op meter provider.
//
// # Configuration
//
//	FOCAL_OTEL_ENABLED=true           enable telemetry (default: off)
//	FOCAL_OTEL_STDOUT=true            write metrics to stdout (dev mode)
//	OTEL_EXPORTER_OTLP_ENDPOINT=...   OTLP/HTTP endpoint (e.g. localhost:4318)
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/ericfisherdev/focal"

// Settings selects the exporters. The zero value disables telemetry.
type Settings struct {
	Enabled      bool
	Stdout       bool
	OTLPEndpoint string
}

// Provider owns the installed meter provider until Shutdown.
type Provider struct {
	shutdown func(context.Context) error
}

// Init installs the global meter provider described by settings. When
// telemetry is disabled it installs a no-op provider and returns immediately.
func Init(ctx context.Context, serviceName, version string, settings Settings) (*Provider, error) {
	if !settings.Enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return &Provider{shutdown: func(context.Context) error { return nil }}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	mp, err := buildMeterProvider(ctx, res, settings)
	if err != nil {
		return nil, fmt.Errorf("telemetry: meter provider: %w", err)
	}
	otel.SetMeterProvider(mp)

	return &Provider{shutdown: mp.Shutdown}, nil
}

func buildMeterProvider(ctx context.Context, res *resource.Resource, settings Settings) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if settings.OTLPEndpoint != "" {
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(settings.OTLPEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)),
		))
	}

	// Default to stdout when enabled but no exporter is configured.
	if settings.Stdout || settings.OTLPEndpoint == "" {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)),
		))
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending metrics and shuts down the provider. It is safe to
// call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	fn := p.shutdown
	p.shutdown = nil

	if err := fn(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}
