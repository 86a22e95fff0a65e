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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeProvider struct {
	results       []ProviderResult
	filteredCalls int
	plainCalls    int
}

func (p *fakeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]ProviderResult, error) {
	p.plainCalls++
	return p.results, nil
}

func (p *fakeProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]ProviderResult, error) {
	p.filteredCalls++
	return p.results, nil
}

type fakeRegistry struct {
	providers map[string]Provider
}

func (r *fakeRegistry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func TestVectorRegistryClientSearchUnfilteredWhenNoFilter(t *testing.T) {
	provider := &fakeProvider{results: []ProviderResult{
		{ID: "doc1", Score: 0.5, Content: "hello", Metadata: map[string]any{"filename": "a.md"}},
	}}
	registry := &fakeRegistry{providers: map[string]Provider{"store_1": provider}}
	client := NewVectorRegistryClient(registry, fakeEmbedder{vec: []float32{0.1, 0.2}})

	results, err := client.Search(context.Background(), "store_1", Query{Text: "hi", MaxNumResults: 5})
	require.NoError(t, err)
	require.Equal(t, 1, provider.plainCalls)
	require.Equal(t, 0, provider.filteredCalls)
	require.Len(t, results, 1)
	require.Equal(t, "doc1", results[0].FileID)
	require.Equal(t, "a.md", results[0].Filename)
}

func TestVectorRegistryClientSearchFilteredWhenFilterPresent(t *testing.T) {
	provider := &fakeProvider{results: []ProviderResult{{ID: "doc1", Score: 0.5}}}
	registry := &fakeRegistry{providers: map[string]Provider{"store_1": provider}}
	client := NewVectorRegistryClient(registry, fakeEmbedder{vec: []float32{0.1}})

	_, err := client.Search(context.Background(), "store_1", Query{
		Text:          "hi",
		MaxNumResults: 5,
		Filters:       map[string]any{"category": "docs"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, provider.filteredCalls)
	require.Equal(t, 0, provider.plainCalls)
}

func TestVectorRegistryClientSearchUnknownStoreReturnsError(t *testing.T) {
	registry := &fakeRegistry{providers: map[string]Provider{}}
	client := NewVectorRegistryClient(registry, fakeEmbedder{})

	_, err := client.Search(context.Background(), "missing", Query{Text: "hi"})
	require.Error(t, err)
}

func TestVectorRegistryClientSearchEmbedErrorPropagates(t *testing.T) {
	provider := &fakeProvider{}
	registry := &fakeRegistry{providers: map[string]Provider{"store_1": provider}}
	client := NewVectorRegistryClient(registry, fakeEmbedder{err: errors.New("embed boom")})

	_, err := client.Search(context.Background(), "store_1", Query{Text: "hi"})
	require.Error(t, err)
}

func TestFilenameFromMetadataMissingReturnsEmpty(t *testing.T) {
	require.Equal(t, "", filenameFromMetadata(nil))
	require.Equal(t, "", filenameFromMetadata(map[string]any{"other": "x"}))
	require.Equal(t, "a.md", filenameFromMetadata(map[string]any{"filename": "a.md"}))
}
