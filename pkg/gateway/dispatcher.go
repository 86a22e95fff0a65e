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
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentgate/pkg/tool"
)

// ToolDispatcher classifies tool calls against a Tool Registry,
// executes native tools in-process, and parks calls it cannot
// resolve. Registered tools are read-only after startup, so a
// Dispatcher is safe for concurrent use across requests.
type ToolDispatcher struct {
	registry *tool.Registry
	emitter  tool.StreamEmitter // optional; nil outside a streaming request
}

// NewToolDispatcher builds a dispatcher over registry. emitter may be
// nil; it is only consulted by tools that implement StreamingTool.
func NewToolDispatcher(registry *tool.Registry, emitter tool.StreamEmitter) *ToolDispatcher {
	return &ToolDispatcher{registry: registry, emitter: emitter}
}

// DispatchResult is the Dispatcher's verdict for one batch of tool
// calls: the InputItems to append (tool-call/tool-output pairs for
// resolved calls, a bare tool-call for parked ones) and whether any
// call in the batch was parked.
type DispatchResult struct {
	Items       []InputItem
	AnyParked   bool
	ParkedNames []string
}

// Dispatch classifies and executes every call in calls, in order.
// Calls the registry declares parallel-safe may run concurrently with
// each other, but resulting InputItems are always appended in the
// batch's original order.
func (d *ToolDispatcher) Dispatch(ctx context.Context, calls []ToolCall) (DispatchResult, error) {
	outcomes := make([]ToolCallOutcome, len(calls))

	aliases := d.registry.BuildAliasMap()
	resolvedNames := make([]string, len(calls))
	for i, call := range calls {
		name := call.ToolName
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		resolvedNames[i] = name
	}

	seen := make(map[string]int, len(calls)) // call id -> first index seen
	g, gCtx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call

		if firstIdx, dup := seen[call.CallID]; dup {
			slog.Warn("duplicate tool call id in batch", "call_id", call.CallID, "first_index", firstIdx, "index", i)
		}
		seen[call.CallID] = i

		t, found := d.registry.FindByName(resolvedNames[i])
		if !found {
			outcomes[i] = ToolCallOutcome{Kind: ToolOutcomeParked, Call: call}
			continue
		}

		parallelSafe := false
		if pt, ok := t.(tool.ParallelSafeTool); ok {
			parallelSafe = pt.ParallelSafe()
		}

		exec := func() error {
			outcomes[i] = d.execute(gCtx, t, call)
			return nil
		}

		if parallelSafe {
			g.Go(exec)
		} else if err := exec(); err != nil {
			return DispatchResult{}, err
		}
	}
	if err := g.Wait(); err != nil {
		return DispatchResult{}, err
	}

	var result DispatchResult
	for _, outcome := range outcomes {
		switch outcome.Kind {
		case ToolOutcomeResolved:
			result.Items = append(result.Items, InputItem{Kind: InputItemFunctionCall, CallID: outcome.Call.CallID, ToolName: outcome.Call.ToolName, Arguments: outcome.Call.Arguments})
			if !outcome.NoOutput {
				result.Items = append(result.Items, InputItem{Kind: InputItemFunctionCallOutput, CallID: outcome.Call.CallID, Output: outcome.Text})
			}
		case ToolOutcomeError:
			result.Items = append(result.Items,
				InputItem{Kind: InputItemFunctionCall, CallID: outcome.Call.CallID, ToolName: outcome.Call.ToolName, Arguments: outcome.Call.Arguments},
				InputItem{Kind: InputItemFunctionCallOutput, CallID: outcome.Call.CallID, Output: fmt.Sprintf("error(%s): %s", outcome.ErrorKind, outcome.ErrorMsg)},
			)
		case ToolOutcomeParked:
			result.Items = append(result.Items, InputItem{Kind: InputItemFunctionCall, CallID: outcome.Call.CallID, ToolName: outcome.Call.ToolName, Arguments: outcome.Call.Arguments})
			result.AnyParked = true
			result.ParkedNames = append(result.ParkedNames, outcome.Call.ToolName)
		}
	}
	return result, nil
}

// execute runs one resolved tool call, translating malformed argument
// JSON, tool errors and cancellation into an error outcome so the model
// can react on its next turn rather than the response failing outright.
// A panic inside the tool is not recovered.
func (d *ToolDispatcher) execute(ctx context.Context, t tool.CallableTool, call ToolCall) ToolCallOutcome {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return ToolCallOutcome{
			Kind:      ToolOutcomeError,
			Call:      call,
			ErrorKind: ErrBadArguments,
			ErrorMsg:  err.Error(),
		}
	}

	var (
		result map[string]any
		err    error
	)
	if st, ok := t.(tool.StreamingTool); ok && d.emitter != nil {
		result, err = st.CallStreaming(ctx, args, d.emitter)
	} else {
		result, err = t.Call(ctx, args)
	}

	if err != nil {
		if ctx.Err() != nil {
			return ToolCallOutcome{Kind: ToolOutcomeError, Call: call, ErrorKind: ErrToolCancelled, ErrorMsg: err.Error()}
		}
		return ToolCallOutcome{Kind: ToolOutcomeError, Call: call, ErrorKind: ErrToolExecution, ErrorMsg: err.Error()}
	}

	if result == nil {
		return ToolCallOutcome{Kind: ToolOutcomeResolved, Call: call, NoOutput: true}
	}

	text, err := json.Marshal(result)
	if err != nil {
		return ToolCallOutcome{Kind: ToolOutcomeError, Call: call, ErrorKind: ErrToolExecution, ErrorMsg: err.Error()}
	}

	return ToolCallOutcome{Kind: ToolOutcomeResolved, Call: call, Text: string(text)}
}
