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
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PromptBuilder assembles the decision prompt the engine sends to the
// LLM each round: the original question, the current result buffer,
// the prior-iteration history (with duplicate warnings and memory
// digests), and the format the reply must follow.
type PromptBuilder struct{}

// NewPromptBuilder builds a PromptBuilder. It holds no state.
func NewPromptBuilder() PromptBuilder { return PromptBuilder{} }

// Build assembles the full decision prompt for one round. attempt is
// the 1-based retry count for the current iteration (reset to 1 each
// new iteration; incremented on parse/validation failure, up to 3).
func (PromptBuilder) Build(question string, buffer []Result, history []Iteration, attempt int, guidance string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Original question: %s\n\n", sanitizeInput(question))

	b.WriteString("Current results:\n")
	if len(buffer) == 0 {
		b.WriteString("(none yet)\n")
	} else {
		for i, r := range buffer {
			fmt.Fprintf(&b, "%d. [%s] score=%.3f attrs=%s\n    %s\n", i+1, r.Filename, r.Score, formatAttributes(r.Attributes), truncateSnippet(r.Content, 240))
		}
	}
	b.WriteString("\n")

	if attrs := distinctAttributeNames(buffer); len(attrs) > 0 {
		fmt.Fprintf(&b, "Distinct attribute names observed: %s\n\n", strings.Join(attrs, ", "))
	}

	if len(history) > 0 {
		b.WriteString("Prior iterations:\n")
		seen := make(map[string]int)
		memory := AssembleMemory(history)
		for i, it := range history {
			marker := ""
			key := it.Query + "|" + fmt.Sprint(it.AppliedFilter)
			if seen[key] > 0 {
				marker = " (DUPLICATE of an earlier query — do not repeat)"
			}
			seen[key]++
			fmt.Fprintf(&b, "%d. query=%q filter=%v results=%d%s\n", i+1, it.Query, it.AppliedFilter, len(it.Results), marker)
		}
		if len(memory.Bullets) > 0 {
			b.WriteString("\nKnowledge memory so far:\n")
			for _, bullet := range memory.Bullets {
				fmt.Fprintf(&b, "- %s\n", bullet)
			}
		}
		b.WriteString("\n")
	}

	if guidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n\n", guidance)
	}

	if attempt > 1 {
		fmt.Fprintf(&b, "This is retry %d of 3 for this iteration — your previous reply did not parse or was invalid. ", attempt)
	}

	b.WriteString("Decide whether the results above are sufficient to answer the question.\n")
	b.WriteString("Reply with exactly one line in one of these two formats:\n")
	b.WriteString("  TERMINATE[:<one-sentence conclusion>]\n")
	b.WriteString("  NEXT_QUERY:<refined query text>{<json filter object>}[##MEMORY##<one-sentence fact worth remembering>]\n")
	b.WriteString("The filter object must be valid JSON. A chunk_index filter must always be paired with a filename filter.\n")
	b.WriteString("Do not propose a query and filter combination identical to one already tried above.\n")

	return b.String()
}

// AssembleMemory reconstructs the running knowledge memory from every
// ##MEMORY## payload captured across the iteration history's raw
// NEXT_QUERY lines.
func AssembleMemory(history []Iteration) Memory {
	var bullets []string
	for _, it := range history {
		if _, payload, ok := splitMemoryMarker(it.Query); ok && payload != "" {
			bullets = append(bullets, payload)
		}
	}
	return Memory{Bullets: bullets}
}

// splitMemoryMarker extracts a ##MEMORY## payload from a raw decision
// line, if present.
func splitMemoryMarker(raw string) (query, payload string, ok bool) {
	idx := strings.Index(raw, memoryMarker)
	if idx == -1 {
		return raw, "", false
	}
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(memoryMarker):]), true
}

func distinctAttributeNames(buffer []Result) []string {
	set := make(map[string]bool)
	for _, r := range buffer {
		for k := range r.Attributes {
			set[k] = true
		}
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func formatAttributes(attrs map[string]any) string {
	if len(attrs) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func truncateSnippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var (
	roleMarkerRe   = regexp.MustCompile(`(?im)^\s*(SYSTEM|ASSISTANT|USER)\s*:`)
	ignorePriorRe  = regexp.MustCompile(`(?i)ignore (all )?(previous|prior|above) instructions`)
	delimiterRe    = regexp.MustCompile(`(?m)^\s*(---+|===+|\*\*\*+)\s*$`)
	codeFenceRe    = regexp.MustCompile("```")
)

// sanitizeInput strips prompt-injection patterns from text that flows
// into the decision prompt: role markers, "ignore instructions"
// phrasing, delimiter-fence attacks, and code fences. Ported from the
// retrieval layer's input sanitizer, the one piece of that layer that
// still applies here now that query refinement lives entirely in this
// package's own loop.
func sanitizeInput(input string) string {
	out := roleMarkerRe.ReplaceAllString(input, "")
	out = ignorePriorRe.ReplaceAllString(out, "")
	out = delimiterRe.ReplaceAllString(out, "")
	out = codeFenceRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
