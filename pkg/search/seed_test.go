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
	"testing"

	"github.com/stretchr/testify/require"
)

type storeScriptedClient struct {
	byStore map[string][]Result
}

func (c *storeScriptedClient) Search(ctx context.Context, storeID string, q Query) ([]Result, error) {
	return c.byStore[storeID], nil
}

func TestSelectSeedStrategyDefaultsToDense(t *testing.T) {
	client := &storeScriptedClient{}
	strategy := SelectSeedStrategy("", client)
	_, ok := strategy.(DenseSeedStrategy)
	require.True(t, ok)

	strategy = SelectSeedStrategy("unknown", client)
	_, ok = strategy.(DenseSeedStrategy)
	require.True(t, ok)

	strategy = SelectSeedStrategy("hybrid", client)
	_, ok = strategy.(HybridSeedStrategy)
	require.True(t, ok)
}

func TestDenseSeedStrategySearchesAllStoresAndMerges(t *testing.T) {
	client := &storeScriptedClient{byStore: map[string][]Result{
		"a": {{FileID: "1", Score: 0.9}},
		"b": {{FileID: "2", Score: 0.95}},
	}}
	strategy := NewDenseSeedStrategy(client)

	results, err := strategy.Seed(context.Background(), "q", 10, nil, []string{"a", "b"}, Params{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "2", results[0].FileID) // higher score first
}

func TestHybridSeedStrategyBlendsLexicalOverlapIntoScore(t *testing.T) {
	client := &storeScriptedClient{byStore: map[string][]Result{
		"a": {
			{FileID: "exact", Score: 0.5, Content: "retry backoff strategy"},
			{FileID: "unrelated", Score: 0.6, Content: "something else entirely"},
		},
	}}
	strategy := NewHybridSeedStrategy(client, 0.5)

	results, err := strategy.Seed(context.Background(), "retry backoff", 2, nil, []string{"a"}, Params{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// the lexically-matching doc should outrank the higher raw dense score
	// once overlap is blended in.
	require.Equal(t, "exact", results[0].FileID)
}

func TestNewHybridSeedStrategyClampsAlpha(t *testing.T) {
	client := &storeScriptedClient{}
	s := NewHybridSeedStrategy(client, 5.0)
	require.Equal(t, 1.0, s.alpha)

	s = NewHybridSeedStrategy(client, -5.0)
	require.Equal(t, 0.0, s.alpha)
}

func TestSearchAllStoresTruncatesToK(t *testing.T) {
	client := &storeScriptedClient{byStore: map[string][]Result{
		"a": {{FileID: "1", Score: 0.1}, {FileID: "2", Score: 0.9}, {FileID: "3", Score: 0.5}},
	}}
	results, err := searchAllStores(context.Background(), client, "q", 2, nil, []string{"a"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "2", results[0].FileID)
	require.Equal(t, "3", results[1].FileID)
}
