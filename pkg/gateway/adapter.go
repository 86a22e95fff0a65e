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

	"github.com/kadirpekel/agentgate/pkg/backend"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// ParameterAdapter is the bidirectional mapping between the
// extended-response shape and the chat-completion shape. It holds no
// state; every method is a pure translation.
type ParameterAdapter struct{}

// NewParameterAdapter constructs a ParameterAdapter.
func NewParameterAdapter() *ParameterAdapter {
	return &ParameterAdapter{}
}

// ToChatCompletion builds an ordered message list from iterationInputs
// and copies sampling parameters from req. Unknown input item kinds
// are dropped.
func (ParameterAdapter) ToChatCompletion(req ResponseRequest, iterationInputs []InputItem) backend.ChatCompletionRequest {
	out := backend.ChatCompletionRequest{
		Model:           req.Model,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxOutputTokens,
		ReasoningEffort: req.ReasoningEffort,
	}

	if req.Instructions != "" {
		out.Messages = append(out.Messages, backend.Message{Role: "system", Content: req.Instructions})
	}

	for _, item := range iterationInputs {
		switch item.Kind {
		case InputItemUserText:
			out.Messages = append(out.Messages, backend.Message{Role: "user", Content: item.Text})
		case InputItemSystemText:
			out.Messages = append(out.Messages, backend.Message{Role: "system", Content: item.Text})
		case InputItemDeveloperText:
			out.Messages = append(out.Messages, backend.Message{Role: "developer", Content: item.Text})
		case InputItemAssistantText:
			out.Messages = append(out.Messages, backend.Message{Role: "assistant", Content: item.Text})
		case InputItemUserMultipart:
			out.Messages = append(out.Messages, backend.Message{Role: "user", Parts: toWireParts(item.Parts)})
		case InputItemFunctionCall:
			out.Messages = append(out.Messages, backend.Message{
				Role: "assistant",
				ToolCalls: []backend.ToolCallRequest{
					{ID: item.CallID, Name: item.ToolName, Arguments: item.Arguments},
				},
			})
		case InputItemFunctionCallOutput:
			out.Messages = append(out.Messages, backend.Message{
				Role:       "tool",
				Content:    item.Output,
				ToolCallID: item.CallID,
			})
		case InputItemReasoning:
			// Reasoning items are internal to this core; the backend is
			// agnostic to them and never sees them replayed.
		}
	}

	if req.ToolChoice.Mode == "tool" {
		out.ToolChoice = req.ToolChoice.ToolName
	} else if req.ToolChoice.Mode != "" {
		out.ToolChoice = req.ToolChoice.Mode
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, toolDefinition(t))
	}

	if req.ResponseFormat != nil {
		out.ResponseFormat = &backend.ResponseFormat{
			Kind:       req.ResponseFormat.Kind,
			SchemaName: req.ResponseFormat.SchemaName,
			Schema:     req.ResponseFormat.Schema,
		}
	}

	return out
}

// toolDefinition converts a ToolDescriptor into its wire shape. Native
// search tools (web-search, file-search, agentic-search) become
// function-shaped stubs whose name equals the tool's declared name;
// the backend need not execute them, since the orchestrator
// intercepts any invocation before it reaches a real executor.
func toolDefinition(t ToolDescriptor) backend.ToolDefinition {
	return backend.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

func toWireParts(parts []ContentPart) []backend.ContentPart {
	out := make([]backend.ContentPart, 0, len(parts))
	for _, p := range parts {
		out = append(out, backend.ContentPart{
			Kind:        string(p.Kind),
			Text:        p.Text,
			ImageURL:    p.ImageURL,
			ImageDetail: p.ImageDetail,
			FileID:      p.FileID,
			FileData:    p.FileData,
			FileName:    p.FileName,
		})
	}
	return out
}

// ToResponse converts one chat-completion choice into the ordered
// output item list of a ResponseRecord; building the record itself
// (status and id) is left to the caller, which knows the broader loop
// state.
func (ParameterAdapter) ToResponse(chat backend.ChatCompletion, req ResponseRequest) []OutputItem {
	if len(chat.Choices) == 0 {
		return nil
	}
	choice := chat.Choices[0]

	var out []OutputItem

	text, reasoning := extractReasoning(choice.Message.Content)
	if reasoning != "" {
		out = append(out, OutputItem{Kind: OutputItemReasoning, Reasoning: reasoning})
	}

	var annotations []Annotation
	for _, a := range choice.Annotations {
		annotations = append(annotations, Annotation(a))
	}
	out = append(out, OutputItem{Kind: OutputItemMessage, Text: text, Annotations: annotations})

	for _, tc := range choice.Message.ToolCalls {
		out = append(out, OutputItem{
			Kind:      OutputItemFunctionCall,
			CallID:    tc.ID,
			ToolName:  tc.Name,
			Arguments: tc.Arguments,
		})
	}

	return out
}

// extractReasoning pulls a leading <think>...</think> block out of
// assistant content, returning the remaining user-visible text and the
// captured reasoning separately.
func extractReasoning(content string) (text string, reasoning string) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, thinkOpenTag) {
		return content, ""
	}
	rest := trimmed[len(thinkOpenTag):]
	end := strings.Index(rest, thinkCloseTag)
	if end == -1 {
		return content, ""
	}
	reasoning = strings.TrimSpace(rest[:end])
	text = strings.TrimSpace(rest[end+len(thinkCloseTag):])
	return text, reasoning
}

// Usage maps a chat-completion's token accounting onto the gateway's
// Usage shape.
func (ParameterAdapter) Usage(chat backend.ChatCompletion) Usage {
	return Usage{
		PromptTokens:     chat.Usage.PromptTokens,
		CompletionTokens: chat.Usage.CompletionTokens,
		TotalTokens:      chat.Usage.TotalTokens,
	}
}
