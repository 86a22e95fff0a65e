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

// Package agentictool wraps the Agentic Search Engine (pkg/search) as
// the built-in "agentic_search" tool: a bounded, LLM-guided loop of
// vector-store searches the Response Orchestrator can invoke in place
// of a single file_search call.
package agentictool

import (
	"context"
	"fmt"

	"github.com/kadirpekel/agentgate/pkg/backend"
	"github.com/kadirpekel/agentgate/pkg/search"
	"github.com/kadirpekel/agentgate/pkg/tool"
)

// iterationEventKind must match gateway.EventAgenticSearchIteration's
// wire value; pkg/tool cannot import pkg/gateway (gateway already
// imports tool), so the two packages share the literal instead of the
// constant.
const iterationEventKind = "response.agentic_search.query_phase.iteration"

// AgenticSearchTool is the built-in "agentic_search" tool.
type AgenticSearchTool struct {
	client       search.VectorStoreClient
	chat         backend.ChatClient
	model        string
	defaultStore []string
}

// Config configures the agentic_search tool.
type Config struct {
	Client          search.VectorStoreClient
	Chat            backend.ChatClient
	Model           string
	AvailableStores []string
}

// New builds the agentic_search tool.
func New(cfg Config) *AgenticSearchTool {
	return &AgenticSearchTool{
		client:       cfg.Client,
		chat:         cfg.Chat,
		model:        cfg.Model,
		defaultStore: cfg.AvailableStores,
	}
}

func (t *AgenticSearchTool) Name() string { return "agentic_search" }

func (t *AgenticSearchTool) Description() string {
	return "Runs an iterative, LLM-guided search over the configured vector stores: each round " +
		"refines the query and filter based on what was found so far, until the results are " +
		"sufficient to answer the question or the iteration/time budget is exhausted."
}

func (t *AgenticSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The question to research.",
			},
			"store_ids": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Vector store ids to search. Defaults to every configured store.",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum citations to return. Defaults to 10.",
			},
			"max_iterations": map[string]any{
				"type":        "integer",
				"description": "Maximum refinement rounds. Defaults to 5.",
			},
		},
		"required": []string{"query"},
	}
}

// Call runs the engine to completion without reporting progress.
func (t *AgenticSearchTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	return t.run(ctx, args, search.NoopProgress{})
}

// CallStreaming runs the engine, forwarding each iteration's progress
// through emitter as it happens.
func (t *AgenticSearchTool) CallStreaming(ctx context.Context, args map[string]any, emitter tool.StreamEmitter) (map[string]any, error) {
	return t.run(ctx, args, progressAdapter{emitter: emitter})
}

// ParallelSafe reports that agentic_search is read-only against the
// vector store and safe to run alongside other tool calls in the same
// batch.
func (t *AgenticSearchTool) ParallelSafe() bool { return true }

func (t *AgenticSearchTool) run(ctx context.Context, args map[string]any, progress search.ProgressReporter) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("agentic_search: query is required")
	}

	storeIDs := t.defaultStore
	if raw, ok := args["store_ids"].([]any); ok && len(raw) > 0 {
		storeIDs = make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				storeIDs = append(storeIDs, s)
			}
		}
	}

	maxResults := 10
	if v, ok := args["max_results"].(float64); ok && v > 0 {
		maxResults = int(v)
	}
	maxIterations := 5
	if v, ok := args["max_iterations"].(float64); ok && v > 0 {
		maxIterations = int(v)
	}

	engine := search.NewEngine(t.client, chatDecider{chat: t.chat, model: t.model})
	resp, err := engine.Run(ctx, search.Params{
		Query:         query,
		StoreIDs:      storeIDs,
		MaxResults:    maxResults,
		MaxIterations: maxIterations,
		SeedStrategy:  "default",
		Tuning:        search.TuningFlags{Temperature: true, TopP: true, PresencePenalty: true, FrequencyPenalty: true},
	}, progress)
	if err != nil {
		return nil, err
	}

	citations := make([]map[string]any, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		citations = append(citations, map[string]any{
			"file_id":  c.FileID,
			"filename": c.Filename,
			"score":    c.Score,
			"content":  c.Content,
		})
	}

	return map[string]any{
		"citations":          citations,
		"iterations_run":     len(resp.Iterations),
		"knowledge_acquired": resp.KnowledgeAcquired,
	}, nil
}

// chatDecider adapts a backend.ChatClient into search.Decider: one
// user-role completion call per decision, with sampling parameters set
// from the engine's current hyperparameters.
type chatDecider struct {
	chat  backend.ChatClient
	model string
}

func (d chatDecider) Decide(ctx context.Context, prompt string, hp search.HyperParams) (string, error) {
	temp := hp.Temperature
	topP := hp.TopP
	presence := hp.PresencePenalty
	frequency := hp.FrequencyPenalty

	resp, err := d.chat.Complete(ctx, backend.ChatCompletionRequest{
		Model:            d.model,
		Messages:         []backend.Message{{Role: "user", Content: prompt}},
		Temperature:      &temp,
		TopP:             &topP,
		PresencePenalty:  &presence,
		FrequencyPenalty: &frequency,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("agentic_search: backend returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// progressAdapter forwards search.ProgressReporter calls onto a
// tool.StreamEmitter as the iterationEventKind event.
type progressAdapter struct {
	emitter tool.StreamEmitter
}

func (p progressAdapter) ReportIteration(iteration, remaining int, query, reasoning string, citations []search.Result) {
	if p.emitter == nil {
		return
	}
	wireCitations := make([]map[string]any, 0, len(citations))
	for _, c := range citations {
		wireCitations = append(wireCitations, map[string]any{
			"file_id":  c.FileID,
			"filename": c.Filename,
			"score":    c.Score,
		})
	}
	p.emitter.Emit(iterationEventKind, map[string]any{
		"iteration": iteration,
		"remaining": remaining,
		"query":     query,
		"reasoning": reasoning,
		"citations": wireCitations,
	})
}

var (
	_ tool.CallableTool     = (*AgenticSearchTool)(nil)
	_ tool.StreamingTool    = (*AgenticSearchTool)(nil)
	_ tool.ParallelSafeTool = (*AgenticSearchTool)(nil)
)
