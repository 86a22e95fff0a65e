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

func TestToChatCompletionOrdersSystemInstructionsFirst(t *testing.T) {
	adapter := NewParameterAdapter()
	req := ResponseRequest{Model: "gpt-test", Instructions: "be concise"}
	items := []InputItem{NewUserText("hello")}

	chat := adapter.ToChatCompletion(req, items)
	require.Len(t, chat.Messages, 2)
	require.Equal(t, "system", chat.Messages[0].Role)
	require.Equal(t, "be concise", chat.Messages[0].Content)
	require.Equal(t, "user", chat.Messages[1].Role)
}

func TestToChatCompletionMapsFunctionCallAndOutput(t *testing.T) {
	adapter := NewParameterAdapter()
	req := ResponseRequest{Model: "gpt-test"}
	items := []InputItem{
		{Kind: InputItemFunctionCall, CallID: "call_1", ToolName: "lookup", Arguments: `{"q":"x"}`},
		{Kind: InputItemFunctionCallOutput, CallID: "call_1", Output: "result text"},
	}

	chat := adapter.ToChatCompletion(req, items)
	require.Len(t, chat.Messages, 2)
	require.Equal(t, "assistant", chat.Messages[0].Role)
	require.Len(t, chat.Messages[0].ToolCalls, 1)
	require.Equal(t, "lookup", chat.Messages[0].ToolCalls[0].Name)
	require.Equal(t, "tool", chat.Messages[1].Role)
	require.Equal(t, "call_1", chat.Messages[1].ToolCallID)
	require.Equal(t, "result text", chat.Messages[1].Content)
}

func TestToChatCompletionDropsReasoningItems(t *testing.T) {
	adapter := NewParameterAdapter()
	req := ResponseRequest{Model: "gpt-test"}
	items := []InputItem{{Kind: InputItemReasoning, Text: "internal thought"}}

	chat := adapter.ToChatCompletion(req, items)
	require.Empty(t, chat.Messages)
}

func TestToChatCompletionToolChoiceModeTool(t *testing.T) {
	adapter := NewParameterAdapter()
	req := ResponseRequest{Model: "m", ToolChoice: ToolChoice{Mode: "tool", ToolName: "search"}}

	chat := adapter.ToChatCompletion(req, nil)
	require.Equal(t, "search", chat.ToolChoice)
}

func TestToChatCompletionToolChoiceModeAuto(t *testing.T) {
	adapter := NewParameterAdapter()
	req := ResponseRequest{Model: "m", ToolChoice: ToolChoice{Mode: "auto"}}

	chat := adapter.ToChatCompletion(req, nil)
	require.Equal(t, "auto", chat.ToolChoice)
}

func TestToResponseExtractsThinkBlockAsReasoning(t *testing.T) {
	adapter := NewParameterAdapter()
	chat := backend.ChatCompletion{Choices: []backend.Choice{
		{Message: backend.Message{Content: "<think>mulling it over</think>the answer is 42"}},
	}}

	out := adapter.ToResponse(chat, ResponseRequest{})
	require.Len(t, out, 2)
	require.Equal(t, OutputItemReasoning, out[0].Kind)
	require.Equal(t, "mulling it over", out[0].Reasoning)
	require.Equal(t, OutputItemMessage, out[1].Kind)
	require.Equal(t, "the answer is 42", out[1].Text)
}

func TestToResponseWithoutThinkBlockIsPlainMessage(t *testing.T) {
	adapter := NewParameterAdapter()
	chat := backend.ChatCompletion{Choices: []backend.Choice{
		{Message: backend.Message{Content: "plain answer"}},
	}}

	out := adapter.ToResponse(chat, ResponseRequest{})
	require.Len(t, out, 1)
	require.Equal(t, OutputItemMessage, out[0].Kind)
	require.Equal(t, "plain answer", out[0].Text)
}

func TestToResponseIncludesToolCalls(t *testing.T) {
	adapter := NewParameterAdapter()
	chat := backend.ChatCompletion{Choices: []backend.Choice{
		{Message: backend.Message{
			Content:   "",
			ToolCalls: []backend.ToolCallRequest{{ID: "call_1", Name: "search", Arguments: "{}"}},
		}},
	}}

	out := adapter.ToResponse(chat, ResponseRequest{})
	require.Len(t, out, 2)
	require.Equal(t, OutputItemFunctionCall, out[1].Kind)
	require.Equal(t, "search", out[1].ToolName)
	require.Equal(t, "call_1", out[1].CallID)
}

func TestToResponseNoChoicesReturnsNil(t *testing.T) {
	adapter := NewParameterAdapter()
	out := adapter.ToResponse(backend.ChatCompletion{}, ResponseRequest{})
	require.Nil(t, out)
}

func TestUsageMapsTokenCounts(t *testing.T) {
	adapter := NewParameterAdapter()
	chat := backend.ChatCompletion{Usage: backend.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}

	usage := adapter.Usage(chat)
	require.Equal(t, 10, usage.PromptTokens)
	require.Equal(t, 5, usage.CompletionTokens)
	require.Equal(t, 15, usage.TotalTokens)
}
