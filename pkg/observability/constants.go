package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrResponseID      = "gateway.response_id"
	AttrResponseModel   = "gateway.response_model"
	AttrToolName        = "tool.name"
	AttrToolCallID      = "tool.call_id"
	AttrBackendModel    = "backend.model"
	AttrBackendTokensIn = "backend.tokens.input"
	AttrBackendTokensOut = "backend.tokens.output"
	AttrSearchQuery     = "search.query"
	AttrSearchIteration = "search.iteration"
	AttrErrorType       = "error.type"
	AttrErrorMessage    = "error.message"
	AttrStatusCode      = "http.status_code"

	// AttrHectorEventID keys a DebugSpan for event-scoped lookup; the Go
	// identifier keeps the name the debug exporter was written against,
	// while the attribute key itself is gateway-scoped.
	AttrHectorEventID = "gateway.event_id"

	SpanResponseCreate        = "gateway.response_create"
	SpanBackendCall           = "gateway.backend_call"
	SpanToolExecution         = "gateway.tool_execution"
	SpanAgenticSearchIteration = "gateway.agentic_search_iteration"

	DefaultServiceName  = "agentgate"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
