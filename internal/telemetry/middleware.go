package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ginHeaderCarrier adapts gin's request headers to propagation.TextMapCarrier.
type ginHeaderCarrier struct{ header http.Header }

func (c ginHeaderCarrier) Get(key string) string { return c.header.Get(key) }
func (c ginHeaderCarrier) Set(key, val string)   { c.header.Set(key, val) }
func (c ginHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.header))
	for k := range c.header {
		keys = append(keys, k)
	}
	return keys
}

// Middleware extracts inbound W3C trace context, opens exactly one SERVER
// span per request, records the request-count and duration metrics on
// completion, and sets span status from the final HTTP status code. The
// error-count metric is recorded by RecordError, not here. §4.4 is a hard
// invariant: never more than one span per request.
func (p *Provider) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := p.propagator.Extract(c.Request.Context(), ginHeaderCarrier{c.Request.Header})

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := p.tracer.Start(ctx, "http.request",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("http.route", route),
			),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		setSpanStatus(span, status)
		span.End()

		labels := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		}

		p.requestCount.Add(ctx, 1, metric.WithAttributes(
			append(labels, attribute.Int("http.response.status_code", status))...,
		))
		p.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

		// http_server_error_count_total is incremented exactly once per
		// internal failure, by the dispatcher's own failure path (which
		// knows the real error.type) — not here. A 5xx status alone isn't
		// necessarily an internal failure: it may be a mock response an
		// endpoint was authored to return on purpose (§7).
	}
}

// RecordError increments http_server_error_count_total with a short
// lowercase error.type tag, per §4.4. Exported so the dispatcher can
// record failures that never reach a normal response (e.g. NoResponse).
func (p *Provider) RecordError(ctx context.Context, method, route, errType string) {
	p.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("error.type", errType),
	))
}

// setSpanStatus maps HTTP status classes to span status per §4.4: OK for
// 2xx, ERROR("Client error") for 4xx, ERROR("Server error") for 5xx,
// UNSET otherwise.
func setSpanStatus(span trace.Span, status int) {
	switch {
	case status >= 200 && status < 300:
		span.SetStatus(codes.Ok, "")
	case status >= 400 && status < 500:
		span.SetStatus(codes.Error, "Client error")
	case status >= 500 && status < 600:
		span.SetStatus(codes.Error, "Server error")
	default:
		span.SetStatus(codes.Unset, "")
	}
}
