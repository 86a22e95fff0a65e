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

// Package thinktool implements the built-in "think" tool: a scratchpad
// the model calls to reason out loud before acting, with no side
// effect beyond a log entry.
package thinktool

import (
	"context"
	"log/slog"

	"github.com/kadirpekel/agentgate/pkg/tool"
)

// ThinkTool is the built-in "think" tool.
type ThinkTool struct{}

// New builds the think tool.
func New() *ThinkTool { return &ThinkTool{} }

func (t *ThinkTool) Name() string { return "think" }

func (t *ThinkTool) Description() string {
	return "Use this to reason step by step before taking an action or responding. " +
		"The thought is not shown to the user; it has no effect on the conversation beyond being logged."
}

func (t *ThinkTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thought": map[string]any{
				"type":        "string",
				"description": "The reasoning to record.",
			},
		},
		"required": []string{"thought"},
	}
}

// Call logs the thought and returns a fixed acknowledgement; the tool
// has no effect beyond that log entry.
func (t *ThinkTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	thought, _ := args["thought"].(string)
	slog.Debug("think", "thought", thought)
	return map[string]any{"acknowledged": true}, nil
}

var _ tool.CallableTool = (*ThinkTool)(nil)
