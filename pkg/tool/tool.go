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

// Package tool defines the interface native, server-side tools implement
// and a thread-safe Registry the Tool Dispatcher uses to resolve them.
//
// Tools are capabilities the Response Orchestrator can execute on behalf
// of the caller without a round-trip to the client: "think", "file_search",
// and "agentic_search" are all CallableTool implementations registered
// here. Tool names the registry does not recognize are parked for the
// client to resolve instead of being executed.
package tool

import "context"

// CallableTool is a server-side tool the Tool Dispatcher can invoke
// directly. Execution is synchronous from the dispatcher's point of view;
// parallel-safe tool batches are driven by the dispatcher, not the tool.
type CallableTool interface {
	// Name returns the unique identifier the LLM uses to invoke this tool.
	Name() string

	// Description explains what the tool does, shown to the backend LLM
	// so it can decide when to call it.
	Description() string

	// Schema returns the JSON schema for the tool's parameters, in the
	// flat {type, properties, required} shape OpenAI function-calling
	// expects. Returns nil if the tool takes no parameters.
	Schema() map[string]any

	// Call executes the tool with the given arguments and returns the
	// result to be serialized back into the conversation as a tool
	// message.
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// StreamEmitter lets a tool surface progress events to a streaming
// caller without this package depending on the gateway's event types.
// The Agentic Search Engine uses this to emit its per-iteration
// progress event while C1 multiplexes backend deltas on the same
// ordered channel.
type StreamEmitter interface {
	Emit(eventKind string, data map[string]any)
}

// StreamingTool is the optional capability a CallableTool implements
// when it wants to emit progress during execution. The dispatcher
// type-asserts for this before falling back to a plain Call.
type StreamingTool interface {
	CallableTool
	CallStreaming(ctx context.Context, args map[string]any, emitter StreamEmitter) (map[string]any, error)
}

// ParallelSafeTool is the optional capability a CallableTool
// implements to declare it may run concurrently with other tool
// calls in the same finish-reason batch. Tools that touch shared
// mutable state should not implement this.
type ParallelSafeTool interface {
	CallableTool
	ParallelSafe() bool
}

// Descriptor is the wire-level shape of a tool definition, as embedded
// in a chat-completions request's `tools` array.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToDescriptor converts a registered tool into its wire Descriptor.
func ToDescriptor(t CallableTool) Descriptor {
	return Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}

// Registry resolves tool names to their CallableTool implementation. It
// is safe for concurrent reads; Register is expected to run during
// startup before the registry is shared across goroutines.
type Registry struct {
	tools   map[string]CallableTool
	aliases map[string]string // alias -> canonical name
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]CallableTool), aliases: make(map[string]string)}
}

// Register adds a tool to the registry, replacing any existing tool
// with the same name.
func (r *Registry) Register(t CallableTool) {
	r.tools[t.Name()] = t
}

// RegisterAlias declares alias as a one-hop synonym for canonical.
// Aliases form a flat mapping, never a chain: resolving an alias never
// triggers a second lookup.
func (r *Registry) RegisterAlias(alias, canonical string) {
	r.aliases[alias] = canonical
}

// BuildAliasMap returns the registry's full alias table. The Tool
// Dispatcher resolves alias -> canonical once at dispatch entry.
func (r *Registry) BuildAliasMap() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// FindByName resolves alias then canonical name, returning the
// registered tool and whether it was found. A lookup miss means the
// name is not a native tool and should be parked for the client.
func (r *Registry) FindByName(name string) (CallableTool, bool) {
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	t, ok := r.tools[name]
	return t, ok
}

// Get looks a tool up by its canonical name only; unlike FindByName it
// does not resolve aliases.
func (r *Registry) Get(name string) (CallableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, in no particular order.
func (r *Registry) List() []CallableTool {
	out := make([]CallableTool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Names returns the set of registered tool names.
func (r *Registry) Names() map[string]bool {
	out := make(map[string]bool, len(r.tools))
	for name := range r.tools {
		out[name] = true
	}
	return out
}
