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

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadirpekel/agentgate/pkg/httpclient"
)

// OpenAIConfig configures OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default "https://api.openai.com/v1"
}

// OpenAIClient is the bundled ChatClient implementation, talking to
// any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	http    *httpclient.Client
	apiKey  string
	baseURL string
}

// NewOpenAIClient builds a ChatClient against an OpenAI-compatible
// endpoint. httpclient.Client owns retry/backoff; this layer never
// retries on its own, per the Backend Chat Client's non-goal of
// network-level retry living in the orchestrator.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for backend chat client")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		http:    httpclient.New(),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

type wireMessage struct {
	Role       string            `json:"role"`
	Content    any               `json:"content,omitempty"`
	ToolCalls  []wireToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireRequest struct {
	Model            string         `json:"model"`
	Messages         []wireMessage  `json:"messages"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	Tools            []wireTool     `json:"tools,omitempty"`
	ToolChoice       any            `json:"tool_choice,omitempty"`
	ResponseFormat   map[string]any `json:"response_format,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	Stream           bool           `json:"stream,omitempty"`
}

func toWireMessages(msgs []Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{Role: m.Role, ToolCallID: m.ToolCallID, Name: m.Name}
		if len(m.Parts) > 0 {
			parts := make([]map[string]any, 0, len(m.Parts))
			for _, p := range m.Parts {
				switch p.Kind {
				case "text":
					parts = append(parts, map[string]any{"type": "text", "text": p.Text})
				case "image":
					img := map[string]any{"url": p.ImageURL}
					if p.ImageDetail != "" {
						img["detail"] = p.ImageDetail
					}
					parts = append(parts, map[string]any{"type": "image_url", "image_url": img})
				case "file":
					f := map[string]any{"filename": p.FileName}
					if p.FileID != "" {
						f["file_id"] = p.FileID
					}
					if p.FileData != "" {
						f["file_data"] = p.FileData
					}
					parts = append(parts, map[string]any{"type": "file", "file": f})
				}
			}
			wm.Content = parts
		} else {
			wm.Content = m.Content
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

func toWireRequest(req ChatCompletionRequest, stream bool) wireRequest {
	wr := wireRequest{
		Model:            req.Model,
		Messages:         toWireMessages(req.Messages),
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxTokens:        req.MaxOutputTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		Stream:           stream,
	}
	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	switch req.ToolChoice {
	case "", "auto":
		// omit, let the backend default
	case "none", "required":
		wr.ToolChoice = req.ToolChoice
	default:
		wr.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]any{"name": req.ToolChoice},
		}
	}
	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Kind {
		case "json_object":
			wr.ResponseFormat = map[string]any{"type": "json_object"}
		case "json_schema":
			wr.ResponseFormat = map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   req.ResponseFormat.SchemaName,
					"schema": req.ResponseFormat.Schema,
				},
			}
		}
	}
	return wr
}

type wireChoiceMessage struct {
	Role      string         `json:"role"`
	Content   *string        `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireChoice struct {
	Index        int               `json:"index"`
	Message      wireChoiceMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireCompletion struct {
	ID      string       `json:"id"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

func (c *OpenAIClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// Complete performs a single-shot chat-completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req ChatCompletionRequest) (*ChatCompletion, error) {
	body, err := json.Marshal(toWireRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(data))
	}

	var wc wireCompletion
	if err := json.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	return fromWireCompletion(wc), nil
}

func fromWireCompletion(wc wireCompletion) *ChatCompletion {
	out := &ChatCompletion{
		ID:      wc.ID,
		Created: wc.Created,
		Model:   wc.Model,
		Usage: Usage{
			PromptTokens:     wc.Usage.PromptTokens,
			CompletionTokens: wc.Usage.CompletionTokens,
			TotalTokens:      wc.Usage.TotalTokens,
		},
	}
	for _, wch := range wc.Choices {
		choice := Choice{Index: wch.Index, FinishReason: wch.FinishReason}
		choice.Message.Role = wch.Message.Role
		if wch.Message.Content != nil {
			choice.Message.Content = *wch.Message.Content
		}
		for _, tc := range wch.Message.ToolCalls {
			choice.Message.ToolCalls = append(choice.Message.ToolCalls, ToolCallRequest{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out.Choices = append(out.Choices, choice)
	}
	return out
}

type wireChunkDelta struct {
	Content   string              `json:"content,omitempty"`
	ToolCalls []wireChunkToolCall `json:"tool_calls,omitempty"`
}

type wireChunkToolCall struct {
	Index    int               `json:"index"`
	ID       string            `json:"id,omitempty"`
	Function *wireFunctionCall `json:"function,omitempty"`
}

type wireChunkChoice struct {
	Index        int            `json:"index"`
	Delta        wireChunkDelta `json:"delta"`
	FinishReason string         `json:"finish_reason"`
}

type wireChunk struct {
	ID      string            `json:"id"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []wireChunkChoice `json:"choices"`
}

// StreamComplete performs a streaming call over server-sent events,
// the format every OpenAI-compatible backend uses for `stream: true`.
func (c *OpenAIClient) StreamComplete(ctx context.Context, req ChatCompletionRequest) (<-chan ChatCompletionChunk, <-chan error) {
	chunks := make(chan ChatCompletionChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := json.Marshal(toWireRequest(req, true))
		if err != nil {
			errs <- fmt.Errorf("marshal chat request: %w", err)
			return
		}

		httpReq, err := c.newRequest(ctx, body)
		if err != nil {
			errs <- fmt.Errorf("build chat request: %w", err)
			return
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			errs <- fmt.Errorf("chat stream request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(resp.Body)
			errs <- fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(data))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var wc wireChunk
			if err := json.Unmarshal([]byte(payload), &wc); err != nil {
				errs <- fmt.Errorf("decode chat stream chunk: %w", err)
				return
			}

			chunk := ChatCompletionChunk{ID: wc.ID, Created: wc.Created, Model: wc.Model}
			for _, wch := range wc.Choices {
				cc := ChunkChoice{Index: wch.Index, FinishReason: wch.FinishReason}
				cc.Delta.Content = wch.Delta.Content
				for _, tc := range wch.Delta.ToolCalls {
					ctc := ChunkToolCall{Index: tc.Index, ID: tc.ID}
					if tc.Function != nil {
						ctc.Name = tc.Function.Name
						ctc.Args = tc.Function.Arguments
					}
					cc.Delta.ToolCalls = append(cc.Delta.ToolCalls, ctc)
				}
				chunk.Choices = append(chunk.Choices, cc)
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("read chat stream: %w", err)
		}
	}()

	return chunks, errs
}

var _ ChatClient = (*OpenAIClient)(nil)
