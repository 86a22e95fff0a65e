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

package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

const (
	initialSeedMultiplier = 3
	maxSeedK              = 100
	maxDecisionRetries    = 3
	relevanceWindow       = 10
)

// Decider is the LLM collaborator the engine asks for a decision each
// round. It is intentionally minimal — a single prompt-in,
// text-reply-out call — so the engine stays independent of any
// specific backend wire shape; the agentic_search tool wrapper adapts
// a backend.ChatClient to this interface.
type Decider interface {
	Decide(ctx context.Context, prompt string, params HyperParams) (string, error)
}

// ProgressReporter receives one event per search iteration. The
// agentic_search tool wrapper implements this over a
// tool.StreamEmitter so C1 can multiplex the engine's progress into
// the same ordered SSE sequence as everything else.
type ProgressReporter interface {
	ReportIteration(iteration, remaining int, query, reasoning string, citations []Result)
}

// NoopProgress discards progress events, for non-streaming callers.
type NoopProgress struct{}

func (NoopProgress) ReportIteration(int, int, string, string, []Result) {}

// Engine is the Agentic Search Engine (C2): given a query, it runs a
// bounded loop of vector searches guided by an LLM's decisions, tuning
// sampling hyperparameters from relevance feedback along the way.
type Engine struct {
	client   VectorStoreClient
	decider  Decider
	composer FilterComposer
	prompt   PromptBuilder
}

// NewEngine builds the Agentic Search Engine over a vector store
// client and an LLM decider.
func NewEngine(client VectorStoreClient, decider Decider) *Engine {
	return &Engine{
		client:   client,
		decider:  decider,
		composer: NewFilterComposer(),
		prompt:   NewPromptBuilder(),
	}
}

// Run executes the full search loop for one invocation and returns the
// engine's citations, iteration history, and acquired knowledge
// summary.
func (e *Engine) Run(ctx context.Context, params Params, progress ProgressReporter) (Response, error) {
	if progress == nil {
		progress = NoopProgress{}
	}
	if params.Query == "" {
		return Response{}, fmt.Errorf("agentic search: query must not be blank")
	}
	maxIterations := params.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 5
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	seedK := maxResults * initialSeedMultiplier
	if seedK > maxSeedK {
		seedK = maxSeedK
	}
	seedStrategy := SelectSeedStrategy(params.SeedStrategy, e.client)

	seedResults, err := seedStrategy.Seed(ctx, params.Query, seedK, params.BaseFilter, params.StoreIDs, params)
	if err != nil {
		return Response{}, fmt.Errorf("agentic search: seed: %w", err)
	}
	if len(seedResults) == 0 {
		return e.finish(nil, nil, "no initial results"), nil
	}

	var bestScore float32
	for _, r := range seedResults {
		if r.Score > bestScore {
			bestScore = r.Score
		}
	}
	avgRelevance := AverageRelevance(seedResults, relevanceWindow, bestScore)

	hp := DefaultHyperParams()
	tuner := NewTuner(params.Tuning)

	history := []Iteration{}
	buffer := append([]Result(nil), seedResults...)
	seen := make(map[string]bool) // dedupe key: fileID|content
	exclusionIDs := []string{}
	for _, r := range buffer {
		key := dedupeKey(r)
		seen[key] = true
		if id, ok := r.Attributes["chunk_id"].(string); ok {
			exclusionIDs = append(exclusionIDs, id)
		}
	}

	decision, reply, err := e.decide(ctx, params.Query, buffer, history, 0)
	if err != nil {
		slog.Warn("agentic search: initial decision failed, terminating", "error", err)
		return e.finish(buffer, history, "llm error"), nil
	}
	_ = reply

	if decision.Kind == DecisionTerminate {
		return e.finish(buffer, history, conclusionOrDefault(decision.Conclusion, "sufficient on first pass")), nil
	}
	history = append(history, Iteration{Query: decision.Raw, AppliedFilter: decision.Filters})

	seenQueries := map[string]int{queryFilterKey(decision.Raw, decision.Filters): 1}

	for i := 1; i <= maxIterations; i++ {
		remaining := maxIterations - i
		progress.ReportIteration(i, remaining, decision.Query, decision.Memory, topCitations(buffer, 3))

		qfKey := queryFilterKey(decision.Raw, decision.Filters)
		if seenQueries[qfKey] > 1 {
			history[len(history)-1].IsFinal = true
			history[len(history)-1].TerminationReason = "repeated queries"
			return e.finish(buffer, history, "repeated queries"), nil
		}

		filter := e.composer.Compose(params.BaseFilter, decision.Filters, exclusionIDs)
		filterMap := ToMap(filter)

		results, err := searchAllStores(ctx, e.client, decision.Query, maxResults, filterMap, params.StoreIDs)
		if err != nil {
			slog.Warn("agentic search: iteration search failed", "iteration", i, "error", err)
		}
		history[len(history)-1].Results = results

		for _, r := range results {
			key := dedupeKey(r)
			if seen[key] {
				continue
			}
			seen[key] = true
			buffer = append(buffer, r)
			if id, ok := r.Attributes["chunk_id"].(string); ok {
				exclusionIDs = append(exclusionIDs, id)
			}
		}

		var roundBest float32
		for _, r := range results {
			if r.Score > roundBest {
				roundBest = r.Score
			}
		}
		if roundBest > bestScore {
			bestScore = roundBest
		}
		avgRelevance = AverageRelevance(results, relevanceWindow, bestScore)
		hp = tuner.Tune(hp, avgRelevance)

		buffer = trimToTop(buffer, maxResults)

		if i == maxIterations {
			history[len(history)-1].IsFinal = true
			history[len(history)-1].TerminationReason = "max iterations reached"
			return e.finish(buffer, history, "max iterations reached"), nil
		}

		var next Decision
		var decErr error
		for attempt := 1; attempt <= maxDecisionRetries; attempt++ {
			guidance := ""
			if attempt > 1 {
				guidance = "Your previous reply was invalid: a chunk_index filter must be paired with a filename filter, and the json filter object must be valid JSON."
			}
			next, _, decErr = e.decideWithHyperParams(ctx, params.Query, buffer, history, attempt, guidance, hp)
			if decErr != nil {
				continue
			}
			if next.Kind == DecisionNextQuery && RequiresFilenameWithChunkIndex(next.Filters) {
				decErr = fmt.Errorf("chunk_index filter without filename")
				continue
			}
			break
		}
		if decErr != nil {
			history[len(history)-1].IsFinal = true
			history[len(history)-1].TerminationReason = "parse failure"
			return e.finish(buffer, history, "parse failure"), nil
		}

		if next.Kind == DecisionTerminate {
			history[len(history)-1].IsFinal = true
			history[len(history)-1].TerminationReason = conclusionOrDefault(next.Conclusion, "sufficient")
			return e.finish(buffer, history, history[len(history)-1].TerminationReason), nil
		}

		decision = next
		history = append(history, Iteration{Query: decision.Raw, AppliedFilter: decision.Filters})
		seenQueries[queryFilterKey(decision.Raw, decision.Filters)]++
	}

	return e.finish(buffer, history, "max iterations reached"), nil
}

func (e *Engine) decide(ctx context.Context, question string, buffer []Result, history []Iteration, attempt int) (Decision, string, error) {
	return e.decideWithHyperParams(ctx, question, buffer, history, attempt, "", DefaultHyperParams())
}

func (e *Engine) decideWithHyperParams(ctx context.Context, question string, buffer []Result, history []Iteration, attempt int, guidance string, hp HyperParams) (Decision, string, error) {
	prompt := e.prompt.Build(question, buffer, history, attempt, guidance)
	reply, err := e.decider.Decide(ctx, prompt, hp)
	if err != nil {
		return Decision{}, "", err
	}
	decision, err := ParseDecision(reply)
	if err != nil {
		return Decision{}, reply, err
	}
	return decision, reply, nil
}

func (e *Engine) finish(buffer []Result, history []Iteration, reason string) Response {
	if len(history) > 0 && !history[len(history)-1].IsFinal {
		history[len(history)-1].IsFinal = true
		history[len(history)-1].TerminationReason = reason
	}
	citations := dedupeByFileAndContent(buffer)
	return Response{
		Citations:        citations,
		Iterations:       history,
		KnowledgeAcquired: summarizeMemory(AssembleMemory(history)),
	}
}

func dedupeKey(r Result) string {
	return r.FileID + "|" + r.Content
}

func dedupeByFileAndContent(results []Result) []Result {
	best := make(map[string]Result)
	order := make([]string, 0, len(results))
	for _, r := range results {
		key := dedupeKey(r)
		if existing, ok := best[key]; !ok {
			best[key] = r
			order = append(order, key)
		} else if r.Score > existing.Score {
			best[key] = r
		}
	}
	out := make([]Result, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func trimToTop(buffer []Result, max int) []Result {
	sort.SliceStable(buffer, func(i, j int) bool { return buffer[i].Score > buffer[j].Score })
	if len(buffer) > max {
		buffer = buffer[:max]
	}
	return buffer
}

func topCitations(buffer []Result, n int) []Result {
	sorted := append([]Result(nil), buffer...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func queryFilterKey(raw string, filters map[string]any) string {
	return fmt.Sprintf("%s|%v", raw, filters)
}

func conclusionOrDefault(conclusion, fallback string) string {
	if conclusion == "" {
		return fallback
	}
	return conclusion
}

func summarizeMemory(m Memory) string {
	if len(m.Bullets) == 0 {
		return ""
	}
	out := m.Bullets[0]
	for _, b := range m.Bullets[1:] {
		out += "; " + b
	}
	return out
}
