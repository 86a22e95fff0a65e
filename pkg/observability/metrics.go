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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the gateway.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// Response Orchestrator (C1) metrics
	responsesCreated  *prometheus.CounterVec
	responseDuration  *prometheus.HistogramVec
	responseErrors    *prometheus.CounterVec
	activeStreams     *prometheus.GaugeVec

	// Backend Chat Client metrics
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	backendTokens   *prometheus.CounterVec
	backendErrors   *prometheus.CounterVec

	// Tool Dispatcher metrics
	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	// Agentic Search Engine (C2) metrics
	searchIterations     *prometheus.HistogramVec
	searchTermination    *prometheus.CounterVec
	searchRelevance      *prometheus.HistogramVec

	// Vector Store Client metrics
	storeSearches     *prometheus.CounterVec
	storeSearchDur    *prometheus.HistogramVec
	storeSearchErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance from configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initOrchestratorMetrics()
	m.initBackendMetrics()
	m.initToolMetrics()
	m.initSearchMetrics()
	m.initStoreMetrics()

	return m, nil
}

func (m *Metrics) initOrchestratorMetrics() {
	m.responsesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "orchestrator",
			Name:      "responses_total",
			Help:      "Total number of extended responses created, by terminal status",
		},
		[]string{"status"},
	)

	m.responseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "orchestrator",
			Name:      "response_duration_seconds",
			Help:      "End-to-end response creation duration in seconds, including all tool-call iterations",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~410s
		},
		[]string{"stream"},
	)

	m.responseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "orchestrator",
			Name:      "errors_total",
			Help:      "Total number of responses that terminated in error, by error kind",
		},
		[]string{"error_kind"},
	)

	m.activeStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.config.Namespace,
			Subsystem: "orchestrator",
			Name:      "active_streams",
			Help:      "Number of currently open CreateStream consumers",
		},
		[]string{"model"},
	)

	m.registry.MustRegister(m.responsesCreated, m.responseDuration, m.responseErrors, m.activeStreams)
}

func (m *Metrics) initBackendMetrics() {
	m.backendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Total number of backend chat-completion calls",
		},
		[]string{"model", "stream"},
	)

	m.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Backend chat-completion call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to 204s
		},
		[]string{"model", "stream"},
	)

	m.backendTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "backend",
			Name:      "tokens_total",
			Help:      "Total number of tokens consumed or generated",
		},
		[]string{"model", "direction"}, // direction: prompt | completion
	)

	m.backendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Total number of backend call errors",
		},
		[]string{"model", "error_type"},
	)

	m.registry.MustRegister(m.backendCalls, m.backendDuration, m.backendTokens, m.backendErrors)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total number of tool invocations dispatched by the core",
		},
		[]string{"tool_name"},
	)

	m.toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"tool_name"},
	)

	m.toolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tool",
			Name:      "errors_total",
			Help:      "Total number of tool execution errors, by kind",
		},
		[]string{"tool_name", "error_kind"},
	)

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors)
}

func (m *Metrics) initSearchMetrics() {
	m.searchIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "agentic_search",
			Name:      "iterations",
			Help:      "Number of refinement iterations an agentic_search invocation ran before terminating",
			Buckets:   prometheus.LinearBuckets(0, 1, 11), // 0..10
		},
		[]string{"termination_reason"},
	)

	m.searchTermination = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "agentic_search",
			Name:      "terminations_total",
			Help:      "Total number of agentic_search runs, by termination reason",
		},
		[]string{"termination_reason"},
	)

	m.searchRelevance = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "agentic_search",
			Name:      "average_relevance",
			Help:      "Average relevance of the top results per refinement round, normalized to [0,1]",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11), // 0.0..1.0
		},
		nil,
	)

	m.registry.MustRegister(m.searchIterations, m.searchTermination, m.searchRelevance)
}

func (m *Metrics) initStoreMetrics() {
	m.storeSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "vector_store",
			Name:      "searches_total",
			Help:      "Total number of per-store vector searches issued",
		},
		[]string{"store_id"},
	)

	m.storeSearchDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "vector_store",
			Name:      "search_duration_seconds",
			Help:      "Per-store vector search duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"store_id"},
	)

	m.storeSearchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "vector_store",
			Name:      "search_errors_total",
			Help:      "Total number of per-store vector search failures",
		},
		[]string{"store_id"},
	)

	m.registry.MustRegister(m.storeSearches, m.storeSearchDur, m.storeSearchErrors)
}

// =============================================================================
// Response Orchestrator Metrics
// =============================================================================

// RecordResponse records a completed (or failed) extended response.
func (m *Metrics) RecordResponse(status string, streaming bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.responsesCreated.WithLabelValues(status).Inc()
	m.responseDuration.WithLabelValues(streamLabel(streaming)).Observe(duration.Seconds())
}

// RecordResponseError records a response that terminated in error.
func (m *Metrics) RecordResponseError(errorKind string) {
	if m == nil {
		return
	}
	m.responseErrors.WithLabelValues(errorKind).Inc()
}

// IncActiveStreams increments the active CreateStream consumer gauge.
func (m *Metrics) IncActiveStreams(model string) {
	if m == nil {
		return
	}
	m.activeStreams.WithLabelValues(model).Inc()
}

// DecActiveStreams decrements the active CreateStream consumer gauge.
func (m *Metrics) DecActiveStreams(model string) {
	if m == nil {
		return
	}
	m.activeStreams.WithLabelValues(model).Dec()
}

// =============================================================================
// Backend Chat Client Metrics
// =============================================================================

// RecordBackendCall records a backend chat-completion call.
func (m *Metrics) RecordBackendCall(model string, streaming bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(model, streamLabel(streaming)).Inc()
	m.backendDuration.WithLabelValues(model, streamLabel(streaming)).Observe(duration.Seconds())
}

// RecordBackendTokens records prompt/completion token usage.
func (m *Metrics) RecordBackendTokens(model string, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.backendTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	m.backendTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordBackendError records a backend call error.
func (m *Metrics) RecordBackendError(model, errorType string) {
	if m == nil {
		return
	}
	m.backendErrors.WithLabelValues(model, errorType).Inc()
}

// =============================================================================
// Tool Dispatcher Metrics
// =============================================================================

// RecordToolCall records a tool invocation.
func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordToolError records a tool execution error.
func (m *Metrics) RecordToolError(toolName, errorKind string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, errorKind).Inc()
}

// =============================================================================
// Agentic Search Engine Metrics
// =============================================================================

// RecordSearchRun records one completed agentic_search invocation: how
// many iterations it ran and why it stopped.
func (m *Metrics) RecordSearchRun(iterations int, terminationReason string) {
	if m == nil {
		return
	}
	m.searchIterations.WithLabelValues(terminationReason).Observe(float64(iterations))
	m.searchTermination.WithLabelValues(terminationReason).Inc()
}

// RecordSearchRelevance records one round's normalized average
// relevance, the signal the Hyperparameter Tuner reacts to.
func (m *Metrics) RecordSearchRelevance(avg float64) {
	if m == nil {
		return
	}
	m.searchRelevance.WithLabelValues().Observe(avg)
}

// =============================================================================
// Vector Store Client Metrics
// =============================================================================

// RecordStoreSearch records one per-store vector search.
func (m *Metrics) RecordStoreSearch(storeID string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeSearches.WithLabelValues(storeID).Inc()
	m.storeSearchDur.WithLabelValues(storeID).Observe(duration.Seconds())
	if err != nil {
		m.storeSearchErrors.WithLabelValues(storeID).Inc()
	}
}

func streamLabel(streaming bool) string {
	if streaming {
		return "stream"
	}
	return "sync"
}

// =============================================================================
// HTTP Handler
// =============================================================================

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
// The gateway core has no HTTP server of its own (transport is an
// external concern, see §1 Non-goals); a hosting HTTP layer mounts this
// handler wherever it chooses.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
