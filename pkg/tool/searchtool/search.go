// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package searchtool provides the "file_search" native tool: a single,
// non-iterative similarity search against one or more configured vector
// stores. The Agentic Search Engine does not call it (it reaches the
// same vector registry through its own client); it is registered so
// the backend LLM can make a single lookup without the iteration
// overhead.
package searchtool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/agentgate/pkg/tool"
	"github.com/kadirpekel/agentgate/pkg/vector"
)

// SearchTool performs similarity search across one or more named vector
// stores, merging and ranking results by score.
type SearchTool struct {
	registry        *vector.Registry
	embedder        vector.Embedder
	availableStores []string // restricts which registry entries this tool may use (empty = all)
	maxLimit        int
	defaultLimit    int
	description     string
}

// Config configures the search tool.
type Config struct {
	// Registry resolves store names to vector.Provider instances.
	Registry *vector.Registry

	// Embedder turns the query string into a vector before searching.
	Embedder vector.Embedder

	// AvailableStores limits which registry entries this tool can search.
	// Empty means every registered store is in scope.
	AvailableStores []string

	// MaxLimit is the maximum results per search (safety limit). Default: 50.
	MaxLimit int

	// DefaultLimit is the default results when limit not specified. Default: 10.
	DefaultLimit int
}

// New creates a new search tool.
func New(cfg Config) *SearchTool {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.Registry == nil {
		cfg.Registry = vector.NewRegistry()
	}

	t := &SearchTool{
		registry:        cfg.Registry,
		embedder:        cfg.Embedder,
		availableStores: cfg.AvailableStores,
		maxLimit:        cfg.MaxLimit,
		defaultLimit:    cfg.DefaultLimit,
	}
	t.description = t.buildDescription()
	return t
}

// Name returns the tool name.
func (t *SearchTool) Name() string {
	return "file_search"
}

// Description returns the tool description.
func (t *SearchTool) Description() string {
	return t.description
}

// Schema returns the JSON schema for parameters.
func (t *SearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to find relevant documents",
			},
			"stores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
				},
				"description": "Specific stores to search (empty searches all available stores)",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum number of results to return (default: %d, max: %d)", t.defaultLimit, t.maxLimit),
			},
			"filters": map[string]any{
				"type":        "object",
				"description": "Equality metadata filters passed to each store's provider",
			},
		},
		"required": []string{"query"},
	}
}

// Call executes the search.
func (t *SearchTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}

	limit := t.defaultLimit
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	} else if l, ok := args["limit"].(int); ok {
		limit = l
	}
	if limit <= 0 {
		limit = t.defaultLimit
	}
	if limit > t.maxLimit {
		limit = t.maxLimit
	}

	var requestedStores []string
	if stores, ok := args["stores"]; ok {
		switch v := stores.(type) {
		case []any:
			for _, s := range v {
				if str, ok := s.(string); ok {
					requestedStores = append(requestedStores, str)
				}
			}
		case []string:
			requestedStores = v
		case string:
			if v != "" {
				requestedStores = []string{v}
			}
		}
	}

	var filters map[string]any
	if f, ok := args["filters"].(map[string]any); ok {
		filters = f
	}

	response, err := t.performSearch(ctx, query, requestedStores, filters, limit)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return result, nil
}

// SearchResponse is the tool's JSON result.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Total      int            `json:"total"`
	Query      string         `json:"query"`
	Duration   string         `json:"duration"`
	StoresUsed []string       `json:"stores_used"`
}

// SearchResult is a single ranked match.
type SearchResult struct {
	ID        string         `json:"id"`
	StoreName string         `json:"store_name"`
	Content   string         `json:"content"`
	Score     float32        `json:"score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// performSearch embeds the query once and fans it out across every
// store in scope, merging results by score.
func (t *SearchTool) performSearch(ctx context.Context, query string, requestedStores []string, filters map[string]any, limit int) (*SearchResponse, error) {
	start := time.Now()

	storeNames := t.storesToSearch(requestedStores)
	if len(storeNames) == 0 {
		return nil, fmt.Errorf("no vector stores available")
	}
	if t.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	queryVector, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var allResults []SearchResult
	var storesUsed []string

	for _, name := range storeNames {
		provider, ok := t.registry.Get(name)
		if !ok {
			continue
		}

		searchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		var results []vector.Result
		if len(filters) > 0 {
			results, err = provider.SearchWithFilter(searchCtx, name, queryVector, limit, filters)
		} else {
			results, err = provider.Search(searchCtx, name, queryVector, limit)
		}
		cancel()

		if err != nil {
			slog.Warn("search failed for store", "store", name, "error", err)
			continue
		}

		storesUsed = append(storesUsed, name)
		for _, r := range results {
			allResults = append(allResults, SearchResult{
				ID:        r.ID,
				StoreName: name,
				Content:   r.Content,
				Score:     r.Score,
				Metadata:  r.Metadata,
			})
		}
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].Score > allResults[j].Score
	})
	if len(allResults) > limit {
		allResults = allResults[:limit]
	}

	return &SearchResponse{
		Results:    allResults,
		Total:      len(allResults),
		Query:      query,
		Duration:   time.Since(start).String(),
		StoresUsed: storesUsed,
	}, nil
}

// storesToSearch resolves the final set of store names given the
// request and this tool's own scoping.
func (t *SearchTool) storesToSearch(requestedStores []string) []string {
	available := t.availableStoreNames()

	if len(requestedStores) > 0 {
		allowed := make(map[string]bool, len(available))
		for _, n := range available {
			allowed[n] = true
		}
		var result []string
		for _, name := range requestedStores {
			if allowed[name] {
				result = append(result, name)
			}
		}
		return result
	}
	return available
}

func (t *SearchTool) availableStoreNames() []string {
	if len(t.availableStores) > 0 {
		return t.availableStores
	}
	return t.registry.List()
}

// buildDescription lists the stores this tool can search.
func (t *SearchTool) buildDescription() string {
	base := "Search vector stores for relevant information using semantic similarity."

	names := t.availableStoreNames()
	if len(names) == 0 {
		return base
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return base + "\n\nAvailable stores: " + strings.Join(sorted, ", ")
}

// Ensure SearchTool implements tool.CallableTool.
var _ tool.CallableTool = (*SearchTool)(nil)
