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
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentgate/pkg/backend"
	"github.com/kadirpekel/agentgate/pkg/tool"
)

// channelEmitter adapts the shared ordered event channel to the
// tool.StreamEmitter contract, so C2's per-iteration progress event
// rides the same single-producer/single-consumer channel C1 uses for
// backend deltas. Callers (tools) run on the orchestrator's goroutine
// while it awaits their execution, so writes here never race with the
// multiplexer's own sends.
type channelEmitter struct {
	ctx context.Context
	out chan<- ResponseEvent
}

func (e *channelEmitter) Emit(eventKind string, data map[string]any) {
	if eventKind != string(EventAgenticSearchIteration) {
		return
	}
	ev := ResponseEvent{Kind: EventAgenticSearchIteration}
	if v, ok := data["iteration"].(int); ok {
		ev.SearchIteration = v
	}
	if v, ok := data["remaining"].(int); ok {
		ev.SearchIterationRemaining = v
	}
	if v, ok := data["query"].(string); ok {
		ev.SearchQuery = v
	}
	if v, ok := data["reasoning"].(string); ok {
		ev.SearchReasoning = v
	}
	if v, ok := data["citations"].([]map[string]any); ok {
		ev.SearchCitations = make([]SearchCitation, 0, len(v))
		for _, c := range v {
			var sc SearchCitation
			if s, ok := c["file_id"].(string); ok {
				sc.FileID = s
			}
			if s, ok := c["filename"].(string); ok {
				sc.Filename = s
			}
			if s, ok := c["score"].(float32); ok {
				sc.Score = s
			}
			ev.SearchCitations = append(ev.SearchCitations, sc)
		}
	}

	select {
	case e.out <- ev:
	case <-e.ctx.Done():
	}
}

var _ tool.StreamEmitter = (*channelEmitter)(nil)

// CreateStream performs a streaming extended-response call, emitting
// the canonical ResponseEvent sequence on the returned channel. The
// channel is closed once a terminal event has been sent or ctx is
// cancelled.
func (o *Orchestrator) CreateStream(ctx context.Context, req ResponseRequest) <-chan ResponseEvent {
	out := make(chan ResponseEvent, 16)
	go o.runStream(ctx, req, out)
	return out
}

func (o *Orchestrator) runStream(ctx context.Context, req ResponseRequest, out chan<- ResponseEvent) {
	defer close(out)

	started := time.Now()
	responseID := "resp_" + uuid.NewString()
	ctx, responseSpan := o.tracer.StartResponse(ctx, responseID, req.Model)
	defer responseSpan.End()
	o.metrics.IncActiveStreams(req.Model)
	defer o.metrics.DecActiveStreams(req.Model)

	deadline := time.Now().Add(o.maxDuration)
	send := func(ev ResponseEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if o.maxDuration <= 0 {
		send(ResponseEvent{Kind: EventError, ErrorKind: ErrTimeout, ErrorMsg: "wall-clock budget is zero"})
		return
	}

	emitter := &channelEmitter{ctx: ctx, out: out}
	builtins := o.tools.Names()
	mux := NewMultiplexer(builtins)
	dispatcher := NewToolDispatcher(o.tools, emitter)

	items := normalizeInput(req)
	toolIters := 0

	for {
		if time.Now().After(deadline) {
			send(ResponseEvent{Kind: EventError, ErrorKind: ErrTimeout, ErrorMsg: "wall-clock budget exceeded"})
			return
		}

		chatReq := o.adapter.ToChatCompletion(req, items)
		callStarted := time.Now()
		callCtx, callSpan := o.tracer.StartBackendCall(ctx, req.Model, true)
		chunks, errs := o.chat.StreamComplete(callCtx, chatReq)
		o.metrics.RecordBackendCall(req.Model, true, time.Since(callStarted))
		mux.Reset()

		finishReason, streamErr, ok := o.drainIteration(ctx, mux, chunks, errs, send)
		if finishReason != "" {
			o.tracer.AddLLMFinishReason(callSpan, finishReason)
		}
		if !ok {
			callSpan.End()
			return
		}
		if streamErr != nil {
			o.tracer.RecordError(callSpan, streamErr)
			callSpan.End()
			o.tracer.RecordError(responseSpan, streamErr)
			o.metrics.RecordBackendError(req.Model, "upstream")
			send(ResponseEvent{Kind: EventError, ErrorKind: ErrUpstream, ErrorMsg: streamErr.Error()})
			return
		}
		callSpan.End()

		switch finishReason {
		case "tool_calls":
			toolEvents, calls, toolItems := mux.FinalizeToolCalls()
			for _, ev := range toolEvents {
				if !send(ev) {
					return
				}
			}

			dispatchStarted := time.Now()
			_, toolSpan := o.tracer.StartToolExecution(ctx, dispatchLabel(calls), responseID)
			dispatchResult, err := dispatcher.Dispatch(ctx, calls)
			o.metrics.RecordToolCall("dispatch", time.Since(dispatchStarted))
			if err != nil {
				o.tracer.RecordError(toolSpan, err)
				toolSpan.End()
				send(ResponseEvent{Kind: EventError, ErrorKind: ErrToolExecution, ErrorMsg: err.Error()})
				return
			}
			toolSpan.End()
			items = append(items, dispatchResult.Items...)

			if dispatchResult.AnyParked {
				var output []OutputItem
				if mux.HasText() {
					textEvents, textItems := mux.FinalizeText()
					for _, ev := range textEvents {
						if !send(ev) {
							return
						}
					}
					output = append(output, textItems...)
				}
				output = append(output, toolItems...)

				record := o.finalizeWithID(responseID, req, output, Usage{}, ResponseCompleted, nil)
				o.metrics.RecordResponse(string(ResponseCompleted), true, time.Since(started))
				if !send(ResponseEvent{Kind: EventCompleted, Response: &record}) {
					return
				}
				o.persist(ctx, req, record, items)
				return
			}

			resolvedCount := len(calls)
			if toolIters+resolvedCount > o.maxToolCalls {
				send(ResponseEvent{Kind: EventError, ErrorKind: ErrTooManyToolCalls, ErrorMsg: "tool call budget exceeded"})
				return
			}
			toolIters += resolvedCount

		default:
			textEvents, textItems := mux.FinalizeText()
			for _, ev := range textEvents {
				if !send(ev) {
					return
				}
			}

			status := ResponseCompleted
			kind := EventCompleted
			incompleteReason := ""
			if finishReason == "length" || finishReason == "content_filter" {
				status = ResponseIncomplete
				kind = EventIncomplete
				incompleteReason = finishReason
			}

			record := o.finalizeWithID(responseID, req, textItems, Usage{}, status, nil)
			o.metrics.RecordResponse(string(status), true, time.Since(started))
			send(ResponseEvent{Kind: kind, Response: &record, IncompleteReason: incompleteReason})
			o.persist(ctx, req, record, items)
			return
		}
	}
}

// drainIteration reads every chunk and error off the backend's stream
// channels for one iteration, forwarding the Multiplexer's events as
// they're produced, until both channels close.
func (o *Orchestrator) drainIteration(
	ctx context.Context,
	mux *Multiplexer,
	chunks <-chan backend.ChatCompletionChunk,
	errs <-chan error,
	send func(ResponseEvent) bool,
) (finishReason string, streamErr error, ok bool) {
	for chunks != nil || errs != nil {
		select {
		case chunk, more := <-chunks:
			if !more {
				chunks = nil
				continue
			}
			events, fr := mux.ProcessChunk(chunk)
			for _, ev := range events {
				if !send(ev) {
					return finishReason, streamErr, false
				}
			}
			if fr != "" {
				finishReason = fr
			}
		case err, more := <-errs:
			if !more {
				errs = nil
				continue
			}
			if err != nil {
				streamErr = err
			}
		case <-ctx.Done():
			return finishReason, ctx.Err(), false
		}
	}
	return finishReason, streamErr, true
}
