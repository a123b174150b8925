package telemetry

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide TracerProvider and MeterProvider plus the
// instruments the middleware records against. Construct one at server
// startup and call Shutdown on graceful exit.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	propagator     propagation.TextMapPropagator

	requestCount metric.Int64Counter
	errorCount   metric.Int64Counter
	duration     metric.Float64Histogram
}

// backoffSchedule is the startup connectivity probe's retry delays (§9:
// bounded retries, not an indefinite loop).
var backoffSchedule = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// NewProvider builds exporters for cfg.Protocol ("grpc" or "http"),
// constructs the TracerProvider/MeterProvider with a parent-based
// trace-id-ratio sampler, registers the three request metrics, and probes
// exporter connectivity with bounded retries before returning.
func NewProvider(ctx context.Context, cfg Config, debug bool) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	traceExporter, metricExporter, err := buildExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Startup connectivity probe: logged on failure, never aborts startup
	// (§5 — exporter reachability is retried in the background by the
	// batch processor regardless).
	if err := probeConnectivity(ctx, cfg, debug); err != nil {
		log.Printf("telemetry: startup connectivity probe did not succeed: %v", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(cfg.Timeout()),
		),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(ExportInterval),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(propagator)

	meter := mp.Meter(cfg.ServiceName)
	requestCount, err := meter.Int64Counter("http_server_request_count_total",
		metric.WithDescription("count of HTTP responses served"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: registering request counter: %w", err)
	}
	errorCount, err := meter.Int64Counter("http_server_error_count_total",
		metric.WithDescription("count of internal request failures"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: registering error counter: %w", err)
	}
	duration, err := meter.Float64Histogram("http_server_request_duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: registering duration histogram: %w", err)
	}

	return &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer("molock"),
		propagator:     propagator,
		requestCount:   requestCount,
		errorCount:     errorCount,
		duration:       duration,
	}, nil
}

// Shutdown flushes and stops both providers. Safe to call once, at server
// exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: tracer provider shutdown: %w", err)
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: meter provider shutdown: %w", err)
	}
	return nil
}

func buildExporters(ctx context.Context, cfg Config) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: invalid endpoint %q: %w", cfg.Endpoint, err)
	}

	switch strings.ToLower(cfg.Protocol) {
	case "grpc":
		traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(u.Host), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: building grpc trace exporter: %w", err)
		}
		metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(u.Host), otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: building grpc metric exporter: %w", err)
		}
		return traceExp, metricExp, nil
	case "http":
		traceExp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(u.Host),
			otlptracehttp.WithURLPath(appendPath(u.Path, "/v1/traces")),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: building http trace exporter: %w", err)
		}
		metricExp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(u.Host),
			otlpmetrichttp.WithURLPath(appendPath(u.Path, "/v1/metrics")),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: building http metric exporter: %w", err)
		}
		return traceExp, metricExp, nil
	default:
		return nil, nil, fmt.Errorf("telemetry: unsupported protocol %q (want \"grpc\" or \"http\")", cfg.Protocol)
	}
}

// appendPath appends suffix to base unless base already ends with it.
func appendPath(base, suffix string) string {
	if strings.HasSuffix(base, suffix) {
		return base
	}
	return strings.TrimSuffix(base, "/") + suffix
}

// probeConnectivity performs a best-effort readiness check with bounded
// backoff before the real exporters start batching spans/metrics, so
// configuration errors surface at startup rather than silently dropping
// the first export batch.
func probeConnectivity(ctx context.Context, cfg Config, debug bool) error {
	if debug {
		log.Printf("telemetry: probing %s exporter at %s", cfg.Protocol, cfg.Endpoint)
	}

	var lastErr error
	for attempt, delay := range backoffSchedule {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: invalid endpoint %q: %w", cfg.Endpoint, err)
		}
		if u.Host == "" {
			lastErr = fmt.Errorf("telemetry: endpoint %q has no host", cfg.Endpoint)
		} else if conn, dialErr := net.DialTimeout("tcp", u.Host, delay); dialErr != nil {
			lastErr = fmt.Errorf("telemetry: dialing %s: %w", u.Host, dialErr)
		} else {
			conn.Close()
			return nil
		}
		if debug {
			log.Printf("telemetry: connectivity probe attempt %d failed: %v", attempt+1, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
