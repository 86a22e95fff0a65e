// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracer wraps an OpenTelemetry tracer with the span helpers the
// Response Orchestrator (C1) and Agentic Search Engine (C2) use:
// one span per response, one per backend call, one per tool
// execution, one per search iteration.
type Tracer struct {
	provider       *sdktrace.TracerProvider
	tracer         trace.Tracer
	debugExporter  *DebugExporter
	capturePayload bool
	serviceName    string
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithDebugExporter attaches an in-memory debug exporter for UI inspection.
func WithDebugExporter(exporter *DebugExporter) TracerOption {
	return func(t *Tracer) { t.debugExporter = exporter }
}

// WithCapturePayloads enables capturing full request/response bodies in spans.
func WithCapturePayloads(capture bool) TracerOption {
	return func(t *Tracer) { t.capturePayload = capture }
}

// NewTracer builds a Tracer from configuration. Returns (nil, nil) if
// tracing is disabled.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Tracer{
		provider:    provider,
		tracer:      provider.Tracer(cfg.ServiceName),
		serviceName: cfg.ServiceName,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.debugExporter != nil {
		provider.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(t.debugExporter))
	}
	return t, nil
}

func createExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp", "jaeger", "zipkin":
		// Jaeger/Zipkin collectors are reached through their OTLP
		// ingest endpoint; no exporter-specific wire format needed.
		return createOTLPExporter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

func createOTLPExporter(ctx context.Context, cfg *TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if cfg.IsInsecure() {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Start begins a span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartResponse begins the top-level span for one extended-response call.
func (t *Tracer) StartResponse(ctx context.Context, responseID, model string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanResponseCreate, trace.WithAttributes(
		attribute.String(AttrResponseID, responseID),
		attribute.String(AttrResponseModel, model),
	))
}

// StartBackendCall begins a span for one chat-completion call to the backend.
func (t *Tracer) StartBackendCall(ctx context.Context, model string, streaming bool) (context.Context, trace.Span) {
	return t.Start(ctx, SpanBackendCall, trace.WithAttributes(
		attribute.String(AttrBackendModel, model),
		attribute.Bool("streaming", streaming),
	))
}

// StartToolExecution begins a span for one tool dispatch.
func (t *Tracer) StartToolExecution(ctx context.Context, toolName, callID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanToolExecution, trace.WithAttributes(
		attribute.String(AttrToolName, toolName),
		attribute.String(AttrToolCallID, callID),
	))
}

// StartSearchIteration begins a span for one Agentic Search Engine
// refinement round.
func (t *Tracer) StartSearchIteration(ctx context.Context, query string, iteration int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanAgenticSearchIteration, trace.WithAttributes(
		attribute.String(AttrSearchQuery, query),
		attribute.Int(AttrSearchIteration, iteration),
	))
}

// AddLLMUsage adds token usage to a span.
func (t *Tracer) AddLLMUsage(span trace.Span, inputTokens, outputTokens int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int(AttrBackendTokensIn, inputTokens),
		attribute.Int(AttrBackendTokensOut, outputTokens),
	)
}

// AddLLMFinishReason adds the backend's finish reason to a span.
func (t *Tracer) AddLLMFinishReason(span trace.Span, reason string) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("finish_reason", reason))
}

// AddPayload adds serialized request/response bodies to a span, if
// payload capture is enabled.
func (t *Tracer) AddPayload(span trace.Span, request, response string) {
	if span == nil || t == nil || !t.capturePayload {
		return
	}
	if request != "" {
		span.SetAttributes(attribute.String("request.body", request))
	}
	if response != "" {
		span.SetAttributes(attribute.String("response.body", response))
	}
}

// AddToolPayload adds serialized tool args/results to a span, if
// payload capture is enabled.
func (t *Tracer) AddToolPayload(span trace.Span, args, response string) {
	if span == nil || t == nil || !t.capturePayload {
		return
	}
	if args != "" {
		span.SetAttributes(attribute.String("tool.args", args))
	}
	if response != "" {
		span.SetAttributes(attribute.String("tool.result", response))
	}
}

// RecordError records an error on a span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String(AttrErrorType, fmt.Sprintf("%T", err)),
		attribute.String(AttrErrorMessage, err.Error()),
	)
}

// DebugExporter returns the configured debug exporter, or nil.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown flushes and shuts down the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// noopSpan returns a span that satisfies trace.Span but records nothing.
func noopSpan() trace.Span {
	_, span := trace.NewNoopTracerProvider().Tracer("noop").Start(context.Background(), "noop")
	return span
}

// SpanTracer is the interface the core depends on, satisfied by both
// *Tracer and NoopTracer, so callers never branch on whether tracing
// is enabled.
type SpanTracer interface {
	StartResponse(ctx context.Context, responseID, model string) (context.Context, trace.Span)
	StartBackendCall(ctx context.Context, model string, streaming bool) (context.Context, trace.Span)
	StartToolExecution(ctx context.Context, toolName, callID string) (context.Context, trace.Span)
	StartSearchIteration(ctx context.Context, query string, iteration int) (context.Context, trace.Span)
	AddLLMUsage(span trace.Span, inputTokens, outputTokens int)
	AddLLMFinishReason(span trace.Span, reason string)
	RecordError(span trace.Span, err error)
	Shutdown(ctx context.Context) error
}

var _ SpanTracer = (*Tracer)(nil)
