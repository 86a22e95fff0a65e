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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDecisionTerminateWithConclusion(t *testing.T) {
	d, err := ParseDecision("TERMINATE:results are sufficient")
	require.NoError(t, err)
	require.Equal(t, DecisionTerminate, d.Kind)
	require.Equal(t, "results are sufficient", d.Conclusion)
}

func TestParseDecisionBareTerminateHasEmptyConclusion(t *testing.T) {
	d, err := ParseDecision("TERMINATE")
	require.NoError(t, err)
	require.Equal(t, DecisionTerminate, d.Kind)
	require.Equal(t, "", d.Conclusion)
}

func TestParseDecisionNextQueryParsesFilter(t *testing.T) {
	d, err := ParseDecision(`NEXT_QUERY:refined query{"category":"docs"}`)
	require.NoError(t, err)
	require.Equal(t, DecisionNextQuery, d.Kind)
	require.Equal(t, "refined query", d.Query)
	require.Equal(t, map[string]any{"category": "docs"}, d.Filters)
}

func TestParseDecisionNextQueryCapturesMemoryMarker(t *testing.T) {
	d, err := ParseDecision(`NEXT_QUERY:refined query{}##MEMORY##auth uses JWT`)
	require.NoError(t, err)
	require.Equal(t, "auth uses JWT", d.Memory)
	require.Contains(t, d.Raw, "##MEMORY##")
}

func TestParseDecisionNextQueryMissingBraceErrors(t *testing.T) {
	_, err := ParseDecision("NEXT_QUERY:refined query with no filter")
	require.Error(t, err)
}

func TestParseDecisionNextQueryUnbalancedBraceErrors(t *testing.T) {
	_, err := ParseDecision(`NEXT_QUERY:refined query{"a": "b"`)
	require.Error(t, err)
}

func TestParseDecisionNextQueryInvalidJSONErrors(t *testing.T) {
	_, err := ParseDecision(`NEXT_QUERY:refined query{not json}`)
	require.Error(t, err)
}

func TestParseDecisionNoDirectiveErrors(t *testing.T) {
	_, err := ParseDecision("just some text with no directive")
	require.Error(t, err)
}

func TestParseDecisionPicksFirstDirectiveLine(t *testing.T) {
	d, err := ParseDecision("some preamble\nTERMINATE:done\nNEXT_QUERY:ignored{}")
	require.NoError(t, err)
	require.Equal(t, DecisionTerminate, d.Kind)
}

func TestRequiresFilenameWithChunkIndex(t *testing.T) {
	require.False(t, RequiresFilenameWithChunkIndex(nil))
	require.False(t, RequiresFilenameWithChunkIndex(map[string]any{"filename": "a.md"}))
	require.False(t, RequiresFilenameWithChunkIndex(map[string]any{"chunk_index": 1, "filename": "a.md"}))
	require.True(t, RequiresFilenameWithChunkIndex(map[string]any{"chunk_index": 1}))
}

func TestMatchingBraceFindsBalancedClose(t *testing.T) {
	require.Equal(t, 9, matchingBrace(`abc{"x":1}def`, 3))
}

func TestMatchingBraceReturnsMinusOneWhenUnbalanced(t *testing.T) {
	require.Equal(t, -1, matchingBrace(`abc{"x":1`, 3))
}
