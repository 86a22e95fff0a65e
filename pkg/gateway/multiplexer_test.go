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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentgate/pkg/backend"
)

func kindsOf(events []ResponseEvent) []ResponseEventKind {
	kinds := make([]ResponseEventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestMultiplexerTextStreamEmitsCreatedInProgressDeltaOnce(t *testing.T) {
	mux := NewMultiplexer(map[string]bool{})

	events, fr := mux.ProcessChunk(backend.ChatCompletionChunk{
		Choices: []backend.ChunkChoice{{Index: 0, Delta: backend.ChunkDelta{Content: "hel"}}},
	})
	require.Equal(t, []ResponseEventKind{EventCreated, EventInProgress, EventTextDelta}, kindsOf(events))
	require.Empty(t, fr)

	events, fr = mux.ProcessChunk(backend.ChatCompletionChunk{
		Choices: []backend.ChunkChoice{{Index: 0, Delta: backend.ChunkDelta{Content: "lo"}, FinishReason: "stop"}},
	})
	require.Equal(t, []ResponseEventKind{EventTextDelta}, kindsOf(events))
	require.Equal(t, "stop", fr)

	doneEvents, items := mux.FinalizeText()
	require.Len(t, doneEvents, 1)
	require.Equal(t, EventTextDone, doneEvents[0].Kind)
	require.Equal(t, "hello", doneEvents[0].Text)
	require.Len(t, items, 1)
	require.Equal(t, "hello", items[0].Text)
}

func TestMultiplexerFinalizeTextWithNoContentReturnsEmptyMessage(t *testing.T) {
	mux := NewMultiplexer(map[string]bool{})
	_, items := mux.FinalizeText()
	require.Len(t, items, 1)
	require.Equal(t, "", items[0].Text)
}

func TestMultiplexerBuiltinToolCallSuppressesDeltaEvents(t *testing.T) {
	mux := NewMultiplexer(map[string]bool{"think": true})

	events, fr := mux.ProcessChunk(backend.ChatCompletionChunk{
		Choices: []backend.ChunkChoice{{Index: 0, Delta: backend.ChunkDelta{
			ToolCalls: []backend.ChunkToolCall{{Index: 0, ID: "call_1", Name: "think", Args: `{"x":`}},
		}}},
	})
	require.Equal(t, []ResponseEventKind{EventCreated, EventInProgress}, kindsOf(events))

	events, fr = mux.ProcessChunk(backend.ChatCompletionChunk{
		Choices: []backend.ChunkChoice{{Index: 0, Delta: backend.ChunkDelta{
			ToolCalls: []backend.ChunkToolCall{{Index: 0, Args: `1}`}},
		}, FinishReason: "tool_calls"}},
	})
	require.Empty(t, events)
	require.Equal(t, "tool_calls", fr)

	doneEvents, calls, items := mux.FinalizeToolCalls()
	require.Empty(t, doneEvents)
	require.Len(t, calls, 1)
	require.Equal(t, "think", calls[0].ToolName)
	require.JSONEq(t, `{"x":1}`, calls[0].Arguments)
	require.Len(t, items, 1)
}

func TestMultiplexerNonBuiltinToolCallEmitsAddedAndArgsDelta(t *testing.T) {
	mux := NewMultiplexer(map[string]bool{})

	events, _ := mux.ProcessChunk(backend.ChatCompletionChunk{
		Choices: []backend.ChunkChoice{{Index: 0, Delta: backend.ChunkDelta{
			ToolCalls: []backend.ChunkToolCall{{Index: 0, ID: "call_1", Name: "custom_tool", Args: `{}`}},
		}}},
	})
	require.Contains(t, kindsOf(events), EventOutputItemAdded)
	require.Contains(t, kindsOf(events), EventFunctionCallArgsDelta)

	doneEvents, calls, _ := mux.FinalizeToolCalls()
	require.Len(t, doneEvents, 1)
	require.Equal(t, EventFunctionCallArgsDone, doneEvents[0].Kind)
	require.Len(t, calls, 1)
}

func TestMultiplexerResetClearsPerIterationStateButNotCreatedFlag(t *testing.T) {
	mux := NewMultiplexer(map[string]bool{})
	mux.ProcessChunk(backend.ChatCompletionChunk{
		Choices: []backend.ChunkChoice{{Index: 0, Delta: backend.ChunkDelta{Content: "hi"}}},
	})
	require.True(t, mux.HasText())

	mux.Reset()
	require.False(t, mux.HasText())

	events, _ := mux.ProcessChunk(backend.ChatCompletionChunk{
		Choices: []backend.ChunkChoice{{Index: 0, Delta: backend.ChunkDelta{Content: "again"}}},
	})
	require.NotContains(t, kindsOf(events), EventCreated)
}
