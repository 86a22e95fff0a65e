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
	"encoding/json"
	"fmt"
	"strings"
)

// DecisionKind discriminates the variant a raw LLM reply parses into.
type DecisionKind string

const (
	DecisionTerminate DecisionKind = "terminate"
	DecisionNextQuery DecisionKind = "next_query"
)

const memoryMarker = "##MEMORY##"

// Decision is the Decision Parser's verdict for one LLM reply.
//
// Query is the cleaned search query, used to drive the next vector
// search. Raw is the untouched "NEXT_QUERY:..." line, including any
// ##MEMORY## marker — this is what callers must store on the
// Iteration so memory can be reconstructed later; the marker must
// never be stripped from the stored history even though Query itself
// is clean.
type Decision struct {
	Kind       DecisionKind
	Conclusion string // terminate

	Query   string         // next_query: cleaned, for searching
	Filters map[string]any // next_query
	Memory  string         // next_query: captured ##MEMORY## payload
	Raw     string         // next_query: full original line
}

// ParseDecision parses a raw LLM reply into a Decision. Any line
// beginning with TERMINATE wins immediately; otherwise the first line
// beginning with "NEXT_QUERY:" is parsed. Malformed JSON in a
// NEXT_QUERY line returns an error the caller should treat as a
// retry.
func ParseDecision(reply string) (Decision, error) {
	lines := strings.Split(reply, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "TERMINATE") {
			conclusion := strings.TrimSpace(strings.TrimPrefix(trimmed, "TERMINATE"))
			conclusion = strings.TrimSpace(strings.TrimPrefix(conclusion, ":"))
			return Decision{Kind: DecisionTerminate, Conclusion: conclusion}, nil
		}
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "NEXT_QUERY:") {
			return parseNextQuery(trimmed)
		}
	}
	return Decision{}, fmt.Errorf("reply contains no TERMINATE or NEXT_QUERY directive")
}

func parseNextQuery(line string) (Decision, error) {
	rest := strings.TrimPrefix(line, "NEXT_QUERY:")

	braceStart := strings.IndexByte(rest, '{')
	if braceStart == -1 {
		return Decision{}, fmt.Errorf("NEXT_QUERY line carries no json filter object")
	}
	braceEnd := matchingBrace(rest, braceStart)
	if braceEnd == -1 {
		return Decision{}, fmt.Errorf("NEXT_QUERY line has an unbalanced json filter object")
	}

	prefix := strings.TrimSpace(rest[:braceStart])
	jsonStr := rest[braceStart : braceEnd+1]
	suffix := rest[braceEnd+1:]

	memory := ""
	if idx := strings.Index(suffix, memoryMarker); idx != -1 {
		memory = strings.TrimSpace(suffix[idx+len(memoryMarker):])
		suffix = suffix[:idx]
	}

	var filters map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &filters); err != nil {
		return Decision{}, fmt.Errorf("parse NEXT_QUERY filters: %w", err)
	}

	query := strings.TrimSpace(strings.TrimSpace(prefix) + " " + strings.TrimSpace(suffix))

	return Decision{
		Kind:    DecisionNextQuery,
		Query:   query,
		Filters: filters,
		Memory:  memory,
		Raw:     line,
	}, nil
}

// matchingBrace returns the index of the '{' at start's matching
// close brace, or -1 if the braces never balance.
func matchingBrace(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// RequiresFilenameWithChunkIndex reports whether filters uses
// chunk_index without also constraining filename — the one structural
// rule the Decision Parser's caller must enforce before accepting a
// NEXT_QUERY decision.
func RequiresFilenameWithChunkIndex(filters map[string]any) bool {
	if filters == nil {
		return false
	}
	_, hasChunkIndex := filters["chunk_index"]
	_, hasFilename := filters["filename"]
	return hasChunkIndex && !hasFilename
}
