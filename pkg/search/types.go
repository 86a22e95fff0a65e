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

// Package search implements the Agentic Search Engine (C2): a bounded
// loop of vector-store searches where an LLM parses results, proposes
// the next query and filter, maintains a knowledge memory, tunes
// sampling hyperparameters from relevance feedback, and terminates on
// sufficiency, repetition, or iteration/timeout limits. It is invoked
// as a built-in tool by the Response Orchestrator (C1).
package search

// Params is one invocation of the Agentic Search Engine.
type Params struct {
	Query         string
	StoreIDs      []string
	BaseFilter    map[string]any // optional user-supplied filter
	MaxResults    int
	MaxIterations int
	SeedStrategy  string // "default" | "hybrid"; unknown names fall back to "default"
	Tuning        TuningFlags
}

// TuningFlags selects which sampling parameters the Hyperparameter
// Tuner is allowed to adjust for this invocation.
type TuningFlags struct {
	Temperature      bool
	TopP             bool
	PresencePenalty  bool
	FrequencyPenalty bool
}

// Result is one retrieved chunk. Deduplication key is (FileID,
// Content), compared as-is; Attributes may carry chunk_index and chunk_id
// among other store-specific metadata.
type Result struct {
	FileID     string
	Filename   string
	Score      float32
	Content    string
	Attributes map[string]any
}

// HyperParams is the sampling state the Tuner mutates each round,
// clamped to its declared range.
type HyperParams struct {
	Temperature      float64 // [0.2, 1.0]
	TopP             float64 // [0.5, 1.0]
	PresencePenalty  float64 // [0, 1]
	FrequencyPenalty float64 // [0, 1]
}

// DefaultHyperParams is the engine's starting point before any
// relevance feedback has been observed.
func DefaultHyperParams() HyperParams {
	return HyperParams{Temperature: 0.65, TopP: 0.775, PresencePenalty: 0.5, FrequencyPenalty: 0.5}
}

// Iteration is one round of the search loop: its query (which may
// embed a ##MEMORY## payload — never stripped, see Decision.Raw in
// decision.go), the filter applied, and whether it is the run's
// terminal iteration.
type Iteration struct {
	Query             string
	AppliedFilter     map[string]any
	IsFinal           bool
	TerminationReason string // populated only when IsFinal

	// Results is for in-process use only: the engine consults it to
	// build the next prompt, but it is excluded from any external
	// serialization of the iteration history.
	Results []Result
}

// Memory is the LLM-visible running summary, rebuilt each round from
// the ##MEMORY## markers captured in the iteration history.
type Memory struct {
	Bullets []string
}

// Response is C2's output, handed back to the Tool Dispatcher as the
// built-in agentic_search tool's result.
type Response struct {
	Citations        []Result
	Iterations       []Iteration
	KnowledgeAcquired string
}
