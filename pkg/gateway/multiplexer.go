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
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentgate/pkg/backend"
)

// bufferedToolCall accumulates one tool call's name, id, and argument
// fragments across chunks until its finish reason arrives.
type bufferedToolCall struct {
	name    string
	callID  string
	args    strings.Builder
	itemID  string
	builtIn bool
	added   bool // output-item-added already emitted (suppressed for built-ins)
}

// Multiplexer turns one iteration's backend chat chunks into the
// canonical ResponseEvent sequence of §3, accumulating the state
// needed to finalize the iteration: text per output index, and
// buffered tool-call name/id/arguments per output index. One
// Multiplexer instance is scoped to a single response (its `created`
// and `in-progress` flags are emitted at most once across every
// iteration of that response), but Reset is called between
// iterations to clear per-iteration buffers.
type Multiplexer struct {
	builtins map[string]bool

	createdEmitted    bool
	inProgressEmitted bool

	textOrder   []int
	textByIndex map[int]*strings.Builder
	textItemID  map[int]string

	toolOrder   []int
	toolByIndex map[int]*bufferedToolCall
}

// NewMultiplexer builds a Multiplexer. builtins is the set of tool
// names recognized as built-in; their argument deltas are suppressed
// until the tool-call batch is finalized.
func NewMultiplexer(builtins map[string]bool) *Multiplexer {
	return &Multiplexer{
		builtins:    builtins,
		textByIndex: make(map[int]*strings.Builder),
		textItemID:  make(map[int]string),
		toolByIndex: make(map[int]*bufferedToolCall),
	}
}

// Reset clears per-iteration buffers without resetting the
// once-per-response created/in-progress flags.
func (m *Multiplexer) Reset() {
	m.textOrder = nil
	m.textByIndex = make(map[int]*strings.Builder)
	m.textItemID = make(map[int]string)
	m.toolOrder = nil
	m.toolByIndex = make(map[int]*bufferedToolCall)
}

// ProcessChunk ingests one backend chunk and returns the events it
// produces, in order. The final finish reason seen (if any) is
// returned alongside so the caller knows when to finalize.
func (m *Multiplexer) ProcessChunk(chunk backend.ChatCompletionChunk) (events []ResponseEvent, finishReason string) {
	if !m.createdEmitted {
		events = append(events, ResponseEvent{Kind: EventCreated})
		m.createdEmitted = true
	}

	for _, choice := range chunk.Choices {
		if len(choice.Delta.Content) > 0 || len(choice.Delta.ToolCalls) > 0 {
			if !m.inProgressEmitted {
				events = append(events, ResponseEvent{Kind: EventInProgress})
				m.inProgressEmitted = true
			}
		}

		if choice.Delta.Content != "" {
			events = append(events, m.emitTextDelta(choice.Index, choice.Delta.Content)...)
		}

		for _, tc := range choice.Delta.ToolCalls {
			events = append(events, m.emitToolCallDelta(tc)...)
		}

		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
	}

	return events, finishReason
}

func (m *Multiplexer) emitTextDelta(outputIndex int, delta string) []ResponseEvent {
	b, ok := m.textByIndex[outputIndex]
	if !ok {
		b = &strings.Builder{}
		m.textByIndex[outputIndex] = b
		m.textItemID[outputIndex] = uuid.NewString()
		m.textOrder = append(m.textOrder, outputIndex)
	}
	b.WriteString(delta)

	return []ResponseEvent{{
		Kind:        EventTextDelta,
		OutputIndex: outputIndex,
		ItemID:      m.textItemID[outputIndex],
		Delta:       delta,
	}}
}

func (m *Multiplexer) emitToolCallDelta(tc backend.ChunkToolCall) []ResponseEvent {
	buf, ok := m.toolByIndex[tc.Index]
	if !ok {
		buf = &bufferedToolCall{name: tc.Name, callID: tc.ID, itemID: uuid.NewString()}
		buf.builtIn = m.builtins[tc.Name]
		m.toolByIndex[tc.Index] = buf
		m.toolOrder = append(m.toolOrder, tc.Index)
	}
	if tc.ID != "" {
		buf.callID = tc.ID
	}
	if tc.Name != "" {
		buf.name = tc.Name
		buf.builtIn = m.builtins[tc.Name]
	}
	buf.args.WriteString(tc.Args)

	if buf.builtIn {
		return nil
	}

	var events []ResponseEvent
	if !buf.added {
		buf.added = true
		events = append(events, ResponseEvent{
			Kind:        EventOutputItemAdded,
			OutputIndex: tc.Index,
			ItemID:      buf.itemID,
			Item: &OutputItem{
				ID:       buf.itemID,
				Kind:     OutputItemFunctionCall,
				CallID:   buf.callID,
				ToolName: buf.name,
			},
		})
	}
	if tc.Args != "" {
		events = append(events, ResponseEvent{
			Kind:        EventFunctionCallArgsDelta,
			OutputIndex: tc.Index,
			ItemID:      buf.itemID,
			Delta:       tc.Args,
		})
	}
	return events
}

// FinalizeText handles a "stop" finish reason: emits a text-done for
// every accumulated text index and returns the resulting message
// output items, in output-index order.
func (m *Multiplexer) FinalizeText() ([]ResponseEvent, []OutputItem) {
	var events []ResponseEvent
	var items []OutputItem
	for _, idx := range m.textOrder {
		text := m.textByIndex[idx].String()
		events = append(events, ResponseEvent{
			Kind:        EventTextDone,
			OutputIndex: idx,
			ItemID:      m.textItemID[idx],
			Text:        text,
		})
		items = append(items, OutputItem{ID: m.textItemID[idx], Kind: OutputItemMessage, Text: text})
	}
	if len(m.textOrder) == 0 {
		// Backend returned stop with empty content: one message item
		// with empty text, no error.
		id := uuid.NewString()
		items = append(items, OutputItem{ID: id, Kind: OutputItemMessage, Text: ""})
	}
	return events, items
}

// FinalizeToolCalls handles a "tool_calls" finish reason: emits
// function-call-args-done for every non-built-in buffered call (in
// output-index order) and returns the complete ToolCall list plus the
// function-call output items to append to the response, regardless of
// built-in status.
func (m *Multiplexer) FinalizeToolCalls() ([]ResponseEvent, []ToolCall, []OutputItem) {
	var events []ResponseEvent
	var calls []ToolCall
	var items []OutputItem

	for _, idx := range m.toolOrder {
		buf := m.toolByIndex[idx]
		args := buf.args.String()

		if !buf.builtIn {
			events = append(events, ResponseEvent{
				Kind:        EventFunctionCallArgsDone,
				OutputIndex: idx,
				ItemID:      buf.itemID,
				Arguments:   args,
			})
		}

		calls = append(calls, ToolCall{CallID: buf.callID, ToolName: buf.name, Arguments: args})
		items = append(items, OutputItem{ID: buf.itemID, Kind: OutputItemFunctionCall, CallID: buf.callID, ToolName: buf.name, Arguments: args})
	}

	return events, calls, items
}

// HasText reports whether any text delta was accumulated this
// iteration — used to decide whether a parked-tool-call iteration
// should also emit a preceding message output.
func (m *Multiplexer) HasText() bool {
	return len(m.textOrder) > 0
}
