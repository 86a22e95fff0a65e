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

package vector

import (
	"context"
	"fmt"
)

// Result is a single match returned by a similarity search.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Provider is the common contract every vector store backend implements:
// chromem-go (embedded), Qdrant, Pinecone. The Agentic Search Engine's
// Filter Composer targets this interface, so swapping the configured store
// never touches C2's decision loop.
type Provider interface {
	// Name identifies the provider implementation, e.g. "qdrant".
	Name() string

	// Upsert writes or replaces a single vector with its metadata.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK nearest neighbors to vector.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter restricts Search to vectors whose metadata matches
	// filter. Filter keys are provider-translated (see buildQdrantFilter
	// and its siblings); equality is the only operator guaranteed to be
	// portable across providers.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a single vector by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every vector whose metadata matches filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection creates a collection (or the provider's nearest
	// equivalent) sized for vectorDimension.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and all its vectors.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases any connections or file handles held by the provider.
	Close() error
}

// NilProvider is a no-op Provider used when no vector store is
// configured. Every method fails with a descriptive error instead of
// panicking on a nil receiver, so a misconfigured gateway surfaces a
// clear "vector store not configured" error on first use rather than
// a nil pointer crash.
type NilProvider struct{}

var errNoProvider = fmt.Errorf("no vector store configured")

func (NilProvider) Name() string { return "nil" }

func (NilProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	return errNoProvider
}

func (NilProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return nil, errNoProvider
}

func (NilProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	return nil, errNoProvider
}

func (NilProvider) Delete(ctx context.Context, collection, id string) error {
	return errNoProvider
}

func (NilProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	return errNoProvider
}

func (NilProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return errNoProvider
}

func (NilProvider) DeleteCollection(ctx context.Context, collection string) error {
	return errNoProvider
}

func (NilProvider) Close() error { return nil }

var _ Provider = NilProvider{}
