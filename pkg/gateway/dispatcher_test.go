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

package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentgate/pkg/tool"
)

type stubTool struct {
	name     string
	result   map[string]any
	err      error
	parallel bool
}

func (s stubTool) Name() string                        { return s.name }
func (s stubTool) Description() string                 { return "stub" }
func (s stubTool) Schema() map[string]any               { return nil }
func (s stubTool) ParallelSafe() bool                   { return s.parallel }
func (s stubTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.result, s.err
}

func TestDispatchResolvedToolAppendsCallAndOutput(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(stubTool{name: "echo", result: map[string]any{"ok": true}})
	d := NewToolDispatcher(reg, nil)

	result, err := d.Dispatch(context.Background(), []ToolCall{{CallID: "c1", ToolName: "echo", Arguments: "{}"}})
	require.NoError(t, err)
	require.False(t, result.AnyParked)
	require.Len(t, result.Items, 2)
	require.Equal(t, InputItemFunctionCall, result.Items[0].Kind)
	require.Equal(t, InputItemFunctionCallOutput, result.Items[1].Kind)
}

func TestDispatchUnknownToolIsParked(t *testing.T) {
	reg := tool.NewRegistry()
	d := NewToolDispatcher(reg, nil)

	result, err := d.Dispatch(context.Background(), []ToolCall{{CallID: "c1", ToolName: "mystery", Arguments: "{}"}})
	require.NoError(t, err)
	require.True(t, result.AnyParked)
	require.Equal(t, []string{"mystery"}, result.ParkedNames)
	require.Len(t, result.Items, 1)
	require.Equal(t, InputItemFunctionCall, result.Items[0].Kind)
}

func TestDispatchToolErrorProducesErrorOutput(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(stubTool{name: "boom", err: errors.New("exploded")})
	d := NewToolDispatcher(reg, nil)

	result, err := d.Dispatch(context.Background(), []ToolCall{{CallID: "c1", ToolName: "boom", Arguments: "{}"}})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Contains(t, result.Items[1].Output, "exploded")
}

func TestDispatchNoOutputToolOmitsOutputItem(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(stubTool{name: "silent", result: nil})
	d := NewToolDispatcher(reg, nil)

	result, err := d.Dispatch(context.Background(), []ToolCall{{CallID: "c1", ToolName: "silent", Arguments: "{}"}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
}

func TestDispatchBadArgumentsJSONProducesError(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(stubTool{name: "echo", result: map[string]any{}})
	d := NewToolDispatcher(reg, nil)

	result, err := d.Dispatch(context.Background(), []ToolCall{{CallID: "c1", ToolName: "echo", Arguments: "not-json"}})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Contains(t, result.Items[1].Output, string(ErrBadArguments))
}

func TestDispatchResolvesAlias(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(stubTool{name: "file_search", result: map[string]any{"ok": true}})
	reg.RegisterAlias("search", "file_search")
	d := NewToolDispatcher(reg, nil)

	result, err := d.Dispatch(context.Background(), []ToolCall{{CallID: "c1", ToolName: "search", Arguments: "{}"}})
	require.NoError(t, err)
	require.False(t, result.AnyParked)
}

func TestDispatchParallelSafeCallsRunConcurrently(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(stubTool{name: "a", result: map[string]any{"v": 1}, parallel: true})
	reg.Register(stubTool{name: "b", result: map[string]any{"v": 2}, parallel: true})
	d := NewToolDispatcher(reg, nil)

	result, err := d.Dispatch(context.Background(), []ToolCall{
		{CallID: "c1", ToolName: "a", Arguments: "{}"},
		{CallID: "c2", ToolName: "b", Arguments: "{}"},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 4)
}
