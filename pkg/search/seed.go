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
	"log/slog"
	"sort"
	"strings"
)

// SeedStrategy produces the pre-seed result set the engine's first
// relevance reading is computed from, before any LLM-guided refinement
// happens.
type SeedStrategy interface {
	Seed(ctx context.Context, query string, k int, filter map[string]any, storeIDs []string, params Params) ([]Result, error)
}

// DenseSeedStrategy is pure dense similarity search across every
// configured store, merged and truncated to k.
type DenseSeedStrategy struct {
	client VectorStoreClient
}

// NewDenseSeedStrategy builds the "default" seed strategy.
func NewDenseSeedStrategy(client VectorStoreClient) DenseSeedStrategy {
	return DenseSeedStrategy{client: client}
}

func (s DenseSeedStrategy) Seed(ctx context.Context, query string, k int, filter map[string]any, storeIDs []string, params Params) ([]Result, error) {
	return searchAllStores(ctx, s.client, query, k, filter, storeIDs)
}

// HybridSeedStrategy blends dense similarity with a lexical
// keyword-overlap score computed over the same dense candidate set, no
// separate lexical index required. alpha weights the dense score; 1.0
// degenerates to pure dense, 0.0 to pure lexical overlap.
type HybridSeedStrategy struct {
	client VectorStoreClient
	alpha  float64
}

// NewHybridSeedStrategy builds the "hybrid" seed strategy.
func NewHybridSeedStrategy(client VectorStoreClient, alpha float64) HybridSeedStrategy {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return HybridSeedStrategy{client: client, alpha: alpha}
}

func (s HybridSeedStrategy) Seed(ctx context.Context, query string, k int, filter map[string]any, storeIDs []string, params Params) ([]Result, error) {
	// Over-fetch densely so the lexical re-rank has a meaningful pool
	// to work with even after the blend reorders it.
	overfetch := k * 3
	if overfetch < k {
		overfetch = k
	}

	results, err := searchAllStores(ctx, s.client, query, overfetch, filter, storeIDs)
	if err != nil {
		return nil, err
	}

	terms := lexicalTerms(query)
	maxDense := float32(0)
	for _, r := range results {
		if r.Score > maxDense {
			maxDense = r.Score
		}
	}

	for i := range results {
		dense := float64(results[i].Score)
		if maxDense > 0 {
			dense = float64(results[i].Score) / float64(maxDense)
		}
		lexical := lexicalOverlap(terms, results[i].Content)
		results[i].Score = float32(s.alpha*dense + (1-s.alpha)*lexical)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func lexicalTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func lexicalOverlap(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func searchAllStores(ctx context.Context, client VectorStoreClient, query string, k int, filter map[string]any, storeIDs []string) ([]Result, error) {
	var merged []Result
	for _, id := range storeIDs {
		res, err := client.Search(ctx, id, Query{Text: query, MaxNumResults: k, Filters: filter})
		if err != nil {
			slog.Warn("agentic search: store search failed", "store_id", id, "error", err)
			continue
		}
		merged = append(merged, res...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// SelectSeedStrategy resolves a strategy name to its implementation,
// falling back to dense similarity for an unknown or empty name.
func SelectSeedStrategy(name string, client VectorStoreClient) SeedStrategy {
	switch name {
	case "hybrid":
		return NewHybridSeedStrategy(client, 0.5)
	default:
		return NewDenseSeedStrategy(client)
	}
}
