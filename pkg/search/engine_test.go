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

type fakeVectorStoreClient struct {
	results []Result
	err     error
	calls   int
}

func (f *fakeVectorStoreClient) Search(ctx context.Context, storeID string, q Query) ([]Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type scriptedDecider struct {
	replies []string
	calls   int
}

func (s *scriptedDecider) Decide(ctx context.Context, prompt string, hp HyperParams) (string, error) {
	if s.calls >= len(s.replies) {
		return "TERMINATE:ran out of script", nil
	}
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

func baseParams() Params {
	return Params{
		Query:         "how does retry work",
		StoreIDs:      []string{"store_1"},
		MaxResults:    5,
		MaxIterations: 3,
	}
}

func TestEngineRunTerminatesOnFirstPassWhenDeciderSaysSufficient(t *testing.T) {
	client := &fakeVectorStoreClient{results: []Result{
		{FileID: "f1", Content: "retries use exponential backoff", Score: 0.9, Attributes: map[string]any{"chunk_id": "c1"}},
	}}
	decider := &scriptedDecider{replies: []string{"TERMINATE:found it"}}
	engine := NewEngine(client, decider)

	resp, err := engine.Run(context.Background(), baseParams(), nil)
	require.NoError(t, err)
	require.Len(t, resp.Iterations, 0)
	require.Len(t, resp.Citations, 1)
}

func TestEngineRunFollowsNextQueryThenTerminates(t *testing.T) {
	client := &fakeVectorStoreClient{results: []Result{
		{FileID: "f1", Content: "chunk one", Score: 0.5, Attributes: map[string]any{"chunk_id": "c1"}},
	}}
	decider := &scriptedDecider{replies: []string{
		`NEXT_QUERY:refined query{}`,
		`TERMINATE:now sufficient`,
	}}
	engine := NewEngine(client, decider)

	resp, err := engine.Run(context.Background(), baseParams(), nil)
	require.NoError(t, err)
	require.Len(t, resp.Iterations, 1)
	require.True(t, resp.Iterations[0].IsFinal)
	require.Equal(t, "now sufficient", resp.Iterations[0].TerminationReason)
}

func TestEngineRunStopsOnRepeatedQuery(t *testing.T) {
	client := &fakeVectorStoreClient{results: []Result{
		{FileID: "f1", Content: "chunk one", Score: 0.5},
	}}
	decider := &scriptedDecider{replies: []string{
		`NEXT_QUERY:same query{}`,
		`NEXT_QUERY:same query{}`,
	}}
	engine := NewEngine(client, decider)

	resp, err := engine.Run(context.Background(), baseParams(), nil)
	require.NoError(t, err)
	last := resp.Iterations[len(resp.Iterations)-1]
	require.True(t, last.IsFinal)
	require.Equal(t, "repeated queries", last.TerminationReason)
}

func TestEngineRunStopsAtMaxIterations(t *testing.T) {
	client := &fakeVectorStoreClient{results: []Result{
		{FileID: "f1", Content: "chunk one", Score: 0.5},
	}}
	replies := []string{
		`NEXT_QUERY:query a{}`,
		`NEXT_QUERY:query b{}`,
		`NEXT_QUERY:query c{}`,
	}
	decider := &scriptedDecider{replies: replies}
	params := baseParams()
	params.MaxIterations = 2

	engine := NewEngine(client, decider)
	resp, err := engine.Run(context.Background(), params, nil)
	require.NoError(t, err)
	last := resp.Iterations[len(resp.Iterations)-1]
	require.True(t, last.IsFinal)
	require.Equal(t, "max iterations reached", last.TerminationReason)
}

func TestEngineRunParseFailureAfterRetriesTerminates(t *testing.T) {
	client := &fakeVectorStoreClient{results: []Result{
		{FileID: "f1", Content: "chunk one", Score: 0.5},
	}}
	decider := &scriptedDecider{replies: []string{
		`NEXT_QUERY:query a{}`,
		"garbled nonsense",
		"garbled nonsense",
		"garbled nonsense",
	}}
	engine := NewEngine(client, decider)

	resp, err := engine.Run(context.Background(), baseParams(), nil)
	require.NoError(t, err)
	last := resp.Iterations[len(resp.Iterations)-1]
	require.True(t, last.IsFinal)
	require.Equal(t, "parse failure", last.TerminationReason)
}

func TestEngineRunTerminatesOnEmptyPreSeed(t *testing.T) {
	client := &fakeVectorStoreClient{results: nil}
	decider := &scriptedDecider{}
	engine := NewEngine(client, decider)

	resp, err := engine.Run(context.Background(), baseParams(), nil)
	require.NoError(t, err)
	require.Empty(t, resp.Citations)
	require.Empty(t, resp.Iterations)
	require.Equal(t, 0, decider.calls)
}

func TestEngineRunRejectsBlankQuery(t *testing.T) {
	client := &fakeVectorStoreClient{}
	decider := &scriptedDecider{}
	engine := NewEngine(client, decider)

	params := baseParams()
	params.Query = ""
	_, err := engine.Run(context.Background(), params, nil)
	require.Error(t, err)
}

func TestEngineRunReportsProgressPerIteration(t *testing.T) {
	client := &fakeVectorStoreClient{results: []Result{
		{FileID: "f1", Content: "chunk one", Score: 0.5},
	}}
	decider := &scriptedDecider{replies: []string{
		`NEXT_QUERY:refined query{}`,
		`TERMINATE:done`,
	}}
	engine := NewEngine(client, decider)

	var reported int
	progress := progressFunc(func(iteration, remaining int, query, reasoning string, citations []Result) {
		reported++
	})

	_, err := engine.Run(context.Background(), baseParams(), progress)
	require.NoError(t, err)
	require.Equal(t, 1, reported)
}

type progressFunc func(iteration, remaining int, query, reasoning string, citations []Result)

func (f progressFunc) ReportIteration(iteration, remaining int, query, reasoning string, citations []Result) {
	f(iteration, remaining, query, reasoning, citations)
}
