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
)

// Query is the per-store search request the Vector Store Client
// consumes.
type Query struct {
	Text          string
	MaxNumResults int
	Filters       any
}

// VectorStoreClient is the Vector Store Client contract §6 defines:
// per-store similarity search with filters. It is the only interface
// C2 uses to reach a vector backend; it never talks to pkg/vector
// directly.
type VectorStoreClient interface {
	Search(ctx context.Context, storeID string, q Query) ([]Result, error)
}

// Embedder turns query text into a vector. This mirrors
// pkg/vector.Embedder's shape so a VectorRegistryClient can be built
// directly from a vector.Embedder without that package depending on
// this one.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is the subset of pkg/vector.Provider this package consumes.
type Provider interface {
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]ProviderResult, error)
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]ProviderResult, error)
}

// ProviderResult mirrors pkg/vector.Result's fields; VectorRegistryClient
// converts it into the richer search.Result shape.
type ProviderResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// ProviderRegistry resolves a store id to a Provider, mirroring
// pkg/vector.Registry's Get method.
type ProviderRegistry interface {
	Get(name string) (Provider, bool)
}

// VectorRegistryClient adapts a ProviderRegistry + Embedder into the
// VectorStoreClient contract the Agentic Search Engine consumes.
type VectorRegistryClient struct {
	registry ProviderRegistry
	embedder Embedder
}

// NewVectorRegistryClient builds a VectorStoreClient over a store
// registry and an embedder.
func NewVectorRegistryClient(registry ProviderRegistry, embedder Embedder) *VectorRegistryClient {
	return &VectorRegistryClient{registry: registry, embedder: embedder}
}

// Search embeds q.Text, then runs a filtered or unfiltered similarity
// search against the named store.
func (c *VectorRegistryClient) Search(ctx context.Context, storeID string, q Query) ([]Result, error) {
	provider, ok := c.registry.Get(storeID)
	if !ok {
		slog.Warn("agentic search: unknown vector store", "store_id", storeID)
		return nil, fmt.Errorf("unknown vector store %q", storeID)
	}

	vec, err := c.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var (
		raw []ProviderResult
	)
	if filterMap, ok := q.Filters.(map[string]any); ok && len(filterMap) > 0 {
		raw, err = provider.SearchWithFilter(ctx, storeID, vec, q.MaxNumResults, filterMap)
	} else {
		raw, err = provider.Search(ctx, storeID, vec, q.MaxNumResults)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		out = append(out, Result{
			FileID:     r.ID,
			Filename:   filenameFromMetadata(r.Metadata),
			Score:      r.Score,
			Content:    r.Content,
			Attributes: r.Metadata,
		})
	}
	return out, nil
}

func filenameFromMetadata(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if name, ok := meta["filename"].(string); ok {
		return name
	}
	return ""
}

var _ VectorStoreClient = (*VectorRegistryClient)(nil)
