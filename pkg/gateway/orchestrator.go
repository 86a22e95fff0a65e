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

package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentgate/pkg/backend"
	"github.com/kadirpekel/agentgate/pkg/observability"
	"github.com/kadirpekel/agentgate/pkg/tool"
)

const (
	defaultMaxToolCalls = 10
	defaultMaxDuration  = 60 * time.Second
)

// Orchestrator is the Response Orchestration Engine (C1): it drives
// the iterative model<->tools dialog until termination, enforces the
// tool-call and wall-clock budgets, and assembles the final record.
type Orchestrator struct {
	adapter ParameterAdapter
	chat    backend.ChatClient
	tools   *tool.Registry
	store   ResponseStore
	metrics observability.Recorder
	tracer  observability.SpanTracer

	maxToolCalls int
	maxDuration  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxToolCalls overrides the default tool-call budget (10).
func WithMaxToolCalls(n int) Option {
	return func(o *Orchestrator) { o.maxToolCalls = n }
}

// WithMaxDuration overrides the default wall-clock budget (60s).
func WithMaxDuration(d time.Duration) Option {
	return func(o *Orchestrator) { o.maxDuration = d }
}

// WithResponseStore attaches an optional ResponseStore.
func WithResponseStore(s ResponseStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithMetrics attaches a metrics Recorder. Defaults to observability.NoopMetrics.
func WithMetrics(m observability.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer attaches a span tracer. Defaults to observability.NoopTracer.
func WithTracer(t observability.SpanTracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// NewOrchestrator builds an Orchestrator over a Backend Chat Client
// and a Tool Registry.
func NewOrchestrator(chat backend.ChatClient, tools *tool.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chat:         chat,
		tools:        tools,
		metrics:      observability.NoopMetrics{},
		tracer:       observability.NoopTracer{},
		maxToolCalls: defaultMaxToolCalls,
		maxDuration:  defaultMaxDuration,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// normalizeInput wraps free text as a single user_text InputItem, or
// passes through an already-ordered sequence.
func normalizeInput(req ResponseRequest) []InputItem {
	if len(req.InputItems) > 0 {
		return append([]InputItem(nil), req.InputItems...)
	}
	return []InputItem{NewUserText(req.InputText)}
}

func (o *Orchestrator) finalize(req ResponseRequest, output []OutputItem, usage Usage, status ResponseStatus, gwErr *GatewayError) ResponseRecord {
	return o.finalizeWithID("resp_"+uuid.NewString(), req, output, usage, status, gwErr)
}

func (o *Orchestrator) finalizeWithID(id string, req ResponseRequest, output []OutputItem, usage Usage, status ResponseStatus, gwErr *GatewayError) ResponseRecord {
	return ResponseRecord{
		ID:        id,
		CreatedAt: time.Now(),
		Status:    status,
		Model:     req.Model,
		Output:    output,
		Usage:     usage,
		Error:     gwErr,
	}
}

// Create performs a non-streaming extended-response call.
func (o *Orchestrator) Create(ctx context.Context, req ResponseRequest) (*ResponseRecord, error) {
	started := time.Now()
	responseID := "resp_" + uuid.NewString()
	ctx, responseSpan := o.tracer.StartResponse(ctx, responseID, req.Model)
	defer responseSpan.End()

	items := normalizeInput(req)
	dispatcher := NewToolDispatcher(o.tools, nil)
	toolIters := 0

	for {
		chatReq := o.adapter.ToChatCompletion(req, items)
		callStarted := time.Now()
		callCtx, callSpan := o.tracer.StartBackendCall(ctx, req.Model, false)
		chat, err := o.chat.Complete(callCtx, chatReq)
		o.metrics.RecordBackendCall(req.Model, false, time.Since(callStarted))
		if err != nil {
			o.tracer.RecordError(callSpan, err)
			callSpan.End()
			o.tracer.RecordError(responseSpan, err)
			o.metrics.RecordBackendError(req.Model, "upstream")
			o.metrics.RecordResponseError(string(ErrUpstream))
			return nil, WrapError(ErrUpstream, "backend chat call failed", err)
		}
		if len(chat.Choices) == 0 {
			callSpan.End()
			o.metrics.RecordResponseError(string(ErrUpstream))
			return nil, NewError(ErrUpstream, "backend returned no choices")
		}
		choice := chat.Choices[0]
		o.tracer.AddLLMFinishReason(callSpan, choice.FinishReason)
		callSpan.End()
		output := o.adapter.ToResponse(*chat, req)
		usage := o.adapter.Usage(*chat)
		o.metrics.RecordBackendTokens(req.Model, usage.PromptTokens, usage.CompletionTokens)

		if choice.FinishReason != "tool_calls" {
			status := ResponseCompleted
			if choice.FinishReason == "length" || choice.FinishReason == "content_filter" {
				status = ResponseIncomplete
			}
			record := o.finalizeWithID(responseID, req, output, usage, status, nil)
			o.persist(ctx, req, record, items)
			o.metrics.RecordResponse(string(status), false, time.Since(started))
			return &record, nil
		}

		calls := extractToolCalls(choice)
		dispatchStarted := time.Now()
		_, toolSpan := o.tracer.StartToolExecution(ctx, dispatchLabel(calls), responseID)
		dispatchResult, err := dispatcher.Dispatch(ctx, calls)
		o.metrics.RecordToolCall("dispatch", time.Since(dispatchStarted))
		if err != nil {
			o.tracer.RecordError(toolSpan, err)
			toolSpan.End()
			o.metrics.RecordResponseError(string(ErrToolExecution))
			return nil, WrapError(ErrToolExecution, "tool dispatch failed", err)
		}
		toolSpan.End()
		items = append(items, dispatchResult.Items...)

		if dispatchResult.AnyParked {
			record := o.finalizeWithID(responseID, req, output, usage, ResponseCompleted, nil)
			o.persist(ctx, req, record, items)
			o.metrics.RecordResponse(string(ResponseCompleted), false, time.Since(started))
			return &record, nil
		}

		resolvedCount := len(calls)
		if toolIters+resolvedCount > o.maxToolCalls {
			o.metrics.RecordResponseError(string(ErrTooManyToolCalls))
			return nil, NewErrorWithStatus(ErrTooManyToolCalls, "tool call budget exceeded")
		}
		toolIters += resolvedCount
	}
}

func (o *Orchestrator) persist(ctx context.Context, req ResponseRequest, record ResponseRecord, items []InputItem) {
	if !req.Store || o.store == nil {
		return
	}
	if err := o.store.Store(ctx, record, items); err != nil {
		// Persistence errors on success are logged; they do not
		// retroactively fail an already-completed response.
		slog.Warn("failed to persist response", "response_id", record.ID, "error", err)
	}
}

// Retrieve delegates to the Response Store.
func (o *Orchestrator) Retrieve(ctx context.Context, id string) (*ResponseRecord, error) {
	if o.store == nil {
		return nil, NewErrorWithStatus(ErrNotFound, "no response store configured")
	}
	return o.store.Get(ctx, id)
}

// Delete delegates to the Response Store.
func (o *Orchestrator) Delete(ctx context.Context, id string) (bool, error) {
	if o.store == nil {
		return false, NewErrorWithStatus(ErrNotFound, "no response store configured")
	}
	return o.store.Delete(ctx, id)
}

// ListInputItems delegates to the Response Store.
func (o *Orchestrator) ListInputItems(ctx context.Context, id string, limit int, order InputItemOrder, after, before string) ([]InputItem, error) {
	if o.store == nil {
		return nil, NewErrorWithStatus(ErrNotFound, "no response store configured")
	}
	return o.store.ListInputItems(ctx, id, limit, order, after, before)
}

func extractToolCalls(choice backend.Choice) []ToolCall {
	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCall{CallID: tc.ID, ToolName: tc.Name, Arguments: tc.Arguments})
	}
	return calls
}

// dispatchLabel names a tool-execution span for a batch dispatch: the
// single tool name if the batch is homogeneous, otherwise "batch".
func dispatchLabel(calls []ToolCall) string {
	if len(calls) == 0 {
		return "none"
	}
	name := calls[0].ToolName
	for _, c := range calls[1:] {
		if c.ToolName != name {
			return "batch"
		}
	}
	return name
}
