// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// No-op Manager
// =============================================================================

// NoopManager returns a no-operation Manager that does nothing.
// Use this when observability is completely disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// =============================================================================
// No-op Tracer
// =============================================================================

// NoopTracer returns a no-operation Tracer.
type NoopTracer struct{}

// Start returns a no-op span.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartResponse returns a no-op span.
func (NoopTracer) StartResponse(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartBackendCall returns a no-op span.
func (NoopTracer) StartBackendCall(ctx context.Context, _ string, _ bool) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartToolExecution returns a no-op span.
func (NoopTracer) StartToolExecution(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartSearchIteration returns a no-op span.
func (NoopTracer) StartSearchIteration(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// AddLLMUsage is a no-op.
func (NoopTracer) AddLLMUsage(_ trace.Span, _, _ int) {}

// AddLLMFinishReason is a no-op.
func (NoopTracer) AddLLMFinishReason(_ trace.Span, _ string) {}

// AddPayload is a no-op.
func (NoopTracer) AddPayload(_ trace.Span, _, _ string) {}

// AddToolPayload is a no-op.
func (NoopTracer) AddToolPayload(_ trace.Span, _, _ string) {}

// RecordError is a no-op.
func (NoopTracer) RecordError(_ trace.Span, _ error) {}

// DebugExporter returns nil.
func (NoopTracer) DebugExporter() *DebugExporter { return nil }

// Shutdown is a no-op.
func (NoopTracer) Shutdown(_ context.Context) error { return nil }

var _ SpanTracer = NoopTracer{}

// =============================================================================
// No-op Metrics
// =============================================================================

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

// Orchestrator metrics - no-op
func (NoopMetrics) RecordResponse(_ string, _ bool, _ time.Duration) {}
func (NoopMetrics) RecordResponseError(_ string)                    {}
func (NoopMetrics) IncActiveStreams(_ string)                       {}
func (NoopMetrics) DecActiveStreams(_ string)                       {}

// Backend metrics - no-op
func (NoopMetrics) RecordBackendCall(_ string, _ bool, _ time.Duration) {}
func (NoopMetrics) RecordBackendTokens(_ string, _, _ int)              {}
func (NoopMetrics) RecordBackendError(_, _ string)                      {}

// Tool metrics - no-op
func (NoopMetrics) RecordToolCall(_ string, _ time.Duration) {}
func (NoopMetrics) RecordToolError(_, _ string)              {}

// Agentic search metrics - no-op
func (NoopMetrics) RecordSearchRun(_ int, _ string)   {}
func (NoopMetrics) RecordSearchRelevance(_ float64)   {}

// Vector store metrics - no-op
func (NoopMetrics) RecordStoreSearch(_ string, _ time.Duration, _ error) {}

// Handler returns a handler that returns 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

// =============================================================================
// Recorder Interface
// =============================================================================

// Recorder defines the interface for recording metrics. This allows
// the core to depend on an interface rather than the concrete
// Prometheus-backed Metrics type, for easier testing.
type Recorder interface {
	// Response Orchestrator (C1) metrics
	RecordResponse(status string, streaming bool, duration time.Duration)
	RecordResponseError(errorKind string)
	IncActiveStreams(model string)
	DecActiveStreams(model string)

	// Backend Chat Client metrics
	RecordBackendCall(model string, streaming bool, duration time.Duration)
	RecordBackendTokens(model string, promptTokens, completionTokens int)
	RecordBackendError(model, errorType string)

	// Tool Dispatcher metrics
	RecordToolCall(toolName string, duration time.Duration)
	RecordToolError(toolName, errorKind string)

	// Agentic Search Engine (C2) metrics
	RecordSearchRun(iterations int, terminationReason string)
	RecordSearchRelevance(avg float64)

	// Vector Store Client metrics
	RecordStoreSearch(storeID string, duration time.Duration, err error)
}

// Ensure implementations satisfy the interface.
var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
