// Package metrics provides the Prometheus and OpenTelemetry implementations of the
// recorder and tracer contracts, selected by loader.metrics and loader.tracing.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	metrics "github.com/tigerroll/deltaloader/pkg/batch/core/metrics"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// Shutdowns collects the shutdown functions of the telemetry providers so they run
// together when the application stops.
type Shutdowns struct {
	mu    sync.Mutex
	funcs []func(context.Context) error
}

// Add registers fn.
func (s *Shutdowns) Add(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs = append(s.funcs, fn)
}

// Run calls every registered function and aggregates their errors.
func (s *Shutdowns) Run(ctx context.Context) error {
	s.mu.Lock()
	funcs := s.funcs
	s.funcs = nil
	s.mu.Unlock()

	var result *multierror.Error
	for _, fn := range funcs {
		if err := fn(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// NewShutdowns creates the registry and runs it on stop.
func NewShutdowns(lc fx.Lifecycle) *Shutdowns {
	s := &Shutdowns{}
	lc.Append(fx.Hook{OnStop: s.Run})
	return s
}

func newResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = "deltaloader"
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

// NewMetricRecorder builds the recorder selected by loader.metrics.backend.
func NewMetricRecorder(cfg *config.Config, shutdowns *Shutdowns) (metrics.MetricRecorder, error) {
	mc := cfg.Loader.Metrics
	switch strings.ToLower(mc.Backend) {
	case "", config.MetricsBackendNone:
		return metrics.NewNoOpMetricRecorder(), nil

	case config.MetricsBackendPrometheus:
		logger.Infof("Metrics: Prometheus (pushgateway: %q).", mc.PushgatewayURL)
		return NewPrometheusRecorder(mc.PushgatewayURL), nil

	case config.MetricsBackendOTLP:
		exporter, err := newMetricExporter(context.Background(), mc)
		if err != nil {
			return nil, exception.NewConfigurationError("config", "failed to create OTLP metric exporter", err)
		}
		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
			sdkmetric.WithResource(newResource(cfg.Loader.Tracing.ServiceName)),
		)
		shutdowns.Add(provider.Shutdown)
		logger.Infof("Metrics: OTLP/%s to %s.", mc.OTLPProtocol, mc.OTLPEndpoint)
		return NewOTelRecorder(provider)

	default:
		return nil, exception.NewConfigurationErrorf("config", "unknown metrics backend '%s' (expected none, prometheus or otlp)", mc.Backend)
	}
}

func newMetricExporter(ctx context.Context, mc config.MetricsConfig) (sdkmetric.Exporter, error) {
	switch strings.ToLower(mc.OTLPProtocol) {
	case "", "grpc":
		opts := []otlpmetricgrpc.Option{}
		if mc.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(mc.OTLPEndpoint))
		}
		if mc.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if mc.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(mc.OTLPEndpoint))
		}
		if mc.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol '%s'", mc.OTLPProtocol)
	}
}

// NewTracer builds an OpenTelemetry tracer when loader.tracing.enabled is set.
func NewTracer(cfg *config.Config, shutdowns *Shutdowns) (metrics.Tracer, error) {
	tc := cfg.Loader.Tracing
	if !tc.Enabled {
		return metrics.NewNoOpTracer(), nil
	}

	exporter, err := newTraceExporter(context.Background(), tc)
	if err != nil {
		return nil, exception.NewConfigurationError("config", "failed to create OTLP trace exporter", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(tc.ServiceName)),
	)
	shutdowns.Add(provider.Shutdown)
	logger.Infof("Tracing: OTLP/%s to %s.", tc.OTLPProtocol, tc.OTLPEndpoint)
	return NewOpenTelemetryTracer(provider), nil
}

func newTraceExporter(ctx context.Context, tc config.TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(tc.OTLPProtocol) {
	case "", "grpc":
		opts := []otlptracegrpc.Option{}
		if tc.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(tc.OTLPEndpoint))
		}
		if tc.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlptracehttp.Option{}
		if tc.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(tc.OTLPEndpoint))
		}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol '%s'", tc.OTLPProtocol)
	}
}

// Module is an Fx module that provides the configured MetricRecorder and Tracer.
var Module = fx.Options(
	fx.Provide(NewShutdowns),
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
