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

// Package gateway implements the Response Orchestration Engine: it
// converts an extended-response request into one or more backend
// chat-completion calls, executes built-in tools server-side, parks
// unrecognized tools for the caller, and multiplexes backend deltas
// into an ordered event sequence in streaming mode.
package gateway

import "time"

// InputItemKind discriminates the variant carried by an InputItem. The
// conversation sequence is a tagged union, not a type hierarchy: every
// variant lives behind one struct so the Parameter Adapter can switch
// on Kind without type assertions.
type InputItemKind string

const (
	InputItemUserText           InputItemKind = "user_text"
	InputItemUserMultipart      InputItemKind = "user_multipart"
	InputItemAssistantText      InputItemKind = "assistant_text"
	InputItemSystemText         InputItemKind = "system_text"
	InputItemDeveloperText      InputItemKind = "developer_text"
	InputItemFunctionCall       InputItemKind = "function_call"
	InputItemFunctionCallOutput InputItemKind = "function_call_output"
	InputItemReasoning          InputItemKind = "reasoning"
)

// ContentPartKind discriminates a ContentPart within a multipart item.
type ContentPartKind string

const (
	ContentPartText  ContentPartKind = "text"
	ContentPartImage ContentPartKind = "image"
	ContentPartFile  ContentPartKind = "file"
)

// ContentPart is one element of a user_multipart InputItem.
type ContentPart struct {
	Kind ContentPartKind

	Text string // text

	ImageURL    string // image
	ImageDetail string // image: "auto" | "low" | "high"

	FileID   string // file: reference to a previously uploaded file
	FileData string // file: inline base64 data, mutually exclusive with FileID
	FileName string // file
}

// InputItem is a single unit in the ordered conversation sequence the
// orchestrator accumulates across loop iterations. Only the fields
// relevant to Kind are populated; the rest are zero. Items are
// appended, never mutated, once added to a working sequence.
type InputItem struct {
	Kind InputItemKind

	Text  string        // user_text, assistant_text, system_text, developer_text, reasoning
	Parts []ContentPart // user_multipart

	CallID    string // function_call, function_call_output
	ToolName  string // function_call
	Arguments string // function_call: raw JSON argument string

	Output string // function_call_output: the tool's textual result
}

// NewUserText builds a user_text InputItem, the shape a free-text
// request input is normalized into.
func NewUserText(text string) InputItem {
	return InputItem{Kind: InputItemUserText, Text: text}
}

// ToolProtocol distinguishes tools executed in-process from tools
// delegated to a remote executor.
type ToolProtocol string

const (
	ToolProtocolNative ToolProtocol = "native"
	ToolProtocolRemote ToolProtocol = "remote"
)

// ToolHosting distinguishes where a tool physically runs.
type ToolHosting string

const (
	ToolHostingLocal  ToolHosting = "local"
	ToolHostingRemote ToolHosting = "remote"
)

// ToolDescriptor is a registered tool's wire-level shape, as loaded at
// process start and referenced read-only for the lifetime of the
// process.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
	Protocol    ToolProtocol
	Hosting     ToolHosting
}

// ToolChoice selects how the backend should pick (or not pick) a tool.
type ToolChoice struct {
	Mode     string // "auto" | "none" | "required" | "tool"
	ToolName string // populated when Mode == "tool"
}

// ResponseFormat constrains the shape of the backend's assistant text.
type ResponseFormat struct {
	Kind       string // "text" | "json_object" | "json_schema"
	SchemaName string
	Schema     map[string]any
}

// ResponseRequest is one inbound call to the extended-response API. It
// is immutable during processing; the orchestrator derives successive
// working InputItem sequences from it but never mutates the request
// itself.
type ResponseRequest struct {
	Model string

	// Input is either free text (wrapped into a single user_text item
	// by the orchestrator) or an already-ordered sequence.
	InputText  string
	InputItems []InputItem

	Temperature     *float64
	TopP            *float64
	MaxOutputTokens *int

	Tools      []ToolDescriptor
	ToolChoice ToolChoice

	Stream bool
	Store  bool

	Instructions       string
	PreviousResponseID string
	ReasoningEffort    string
	ResponseFormat     *ResponseFormat
}

// ToolCall is the model's request to invoke one tool, carried on an
// assistant message.
type ToolCall struct {
	CallID    string
	ToolName  string
	Arguments string // raw JSON
}

// ToolCallOutcomeKind discriminates the variant carried by a
// ToolCallOutcome.
type ToolCallOutcomeKind string

const (
	ToolOutcomeResolved ToolCallOutcomeKind = "resolved"
	ToolOutcomeParked   ToolCallOutcomeKind = "parked"
	ToolOutcomeError    ToolCallOutcomeKind = "error"
)

// ToolCallOutcome is the Tool Dispatcher's verdict for one ToolCall,
// emitted exactly once per call.
type ToolCallOutcome struct {
	Kind ToolCallOutcomeKind
	Call ToolCall

	Text     string // resolved: the tool's textual output
	NoOutput bool   // resolved: tool returned null — no output item is appended

	ErrorKind ErrorKind // error
	ErrorMsg  string    // error
}

// OutputItemKind discriminates the variant carried by an OutputItem.
type OutputItemKind string

const (
	OutputItemMessage      OutputItemKind = "message"
	OutputItemFunctionCall OutputItemKind = "function_call"
	OutputItemReasoning    OutputItemKind = "reasoning"
)

// Annotation is a URL citation attached to a message output's text.
type Annotation struct {
	URL        string
	Title      string
	StartIndex int
	EndIndex   int
}

// OutputItem is one element of a ResponseRecord's final ordered output.
type OutputItem struct {
	ID   string
	Kind OutputItemKind

	Text        string       // message
	Annotations []Annotation // message

	CallID    string // function_call
	ToolName  string // function_call
	Arguments string // function_call

	Reasoning string // reasoning
}

// ResponseStatus is the terminal or in-flight state of a ResponseRecord.
type ResponseStatus string

const (
	ResponseInProgress ResponseStatus = "in_progress"
	ResponseCompleted  ResponseStatus = "completed"
	ResponseIncomplete ResponseStatus = "incomplete"
	ResponseFailed     ResponseStatus = "failed"
)

// Usage mirrors the backend's token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ResponseRecord is the final, immutable result of a response. It is
// built once by the orchestrator and optionally persisted through the
// Response Store.
type ResponseRecord struct {
	ID        string
	CreatedAt time.Time
	Status    ResponseStatus
	Model     string
	Output    []OutputItem
	Usage     Usage
	Error     *GatewayError
}

// ResponseEventKind discriminates the variant carried by a
// ResponseEvent. Events within one response are strictly totally
// ordered; see the Streaming Multiplexer for the emission rules.
type ResponseEventKind string

const (
	EventCreated               ResponseEventKind = "response.created"
	EventInProgress            ResponseEventKind = "response.in_progress"
	EventOutputItemAdded       ResponseEventKind = "response.output_item.added"
	EventTextDelta             ResponseEventKind = "response.output_text.delta"
	EventTextDone              ResponseEventKind = "response.output_text.done"
	EventFunctionCallArgsDelta ResponseEventKind = "response.function_call_arguments.delta"
	EventFunctionCallArgsDone  ResponseEventKind = "response.function_call_arguments.done"
	EventOutputItemDone        ResponseEventKind = "response.output_item.done"
	EventCompleted             ResponseEventKind = "response.completed"
	EventIncomplete            ResponseEventKind = "response.incomplete"
	EventError                 ResponseEventKind = "response.error"

	// EventAgenticSearchIteration is C2's progress event, surfaced
	// through C1's same ordered channel so a streaming client sees
	// search iterations as they happen.
	EventAgenticSearchIteration ResponseEventKind = "response.agentic_search.query_phase.iteration"
)

// ResponseEvent is one element of the canonical streaming sequence.
// Only the fields relevant to Kind are populated.
type ResponseEvent struct {
	Kind ResponseEventKind

	OutputIndex int    // output-item-added, text-*, function-call-args-*, output-item-done
	ItemID      string // text-*, function-call-args-*, output-item-added, output-item-done

	Item *OutputItem // created (snapshot), output-item-added, output-item-done

	Delta string // text-delta, function-call-args-delta
	Text  string // text-done (full accumulated text)

	Arguments string // function-call-args-done (full accumulated arguments)

	Response *ResponseRecord // created, completed, incomplete

	IncompleteReason string // incomplete

	ErrorKind ErrorKind // error
	ErrorMsg  string    // error

	// Agentic search iteration fields.
	SearchIteration          int
	SearchIterationRemaining int
	SearchQuery              string
	SearchReasoning          string
	SearchCitations          []SearchCitation
}

// SearchCitation is the minimal per-chunk reference surfaced on an
// agentic-search iteration event; it deliberately excludes the full
// chunk content carried internally by SearchResult.
type SearchCitation struct {
	FileID   string
	Filename string
	Score    float32
}
