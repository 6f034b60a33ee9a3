package protocol

// ExecutorCall represents a request to run a confirmed program.
type ExecutorCall struct {
	ProgramID string         `json:"program_id"`
	Principal string         `json:"principal"` // "self" or a remote principal
	Input     map[string]any `json:"input"`
	Timeout   int            `json:"timeout"` // seconds
}

// ExecutorOutput represents one {outputType, outputValue} pair streamed
// back from an executor while a program runs.
type ExecutorOutput struct {
	OutputType  string `json:"output_type"`
	OutputValue any    `json:"output_value"`
}

// ExecutorResult represents the terminal result of an executor call.
type ExecutorResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ProgramDefinition describes a formal program's declared parameters, as
// surfaced by the external parser/type-checker.
type ProgramDefinition struct {
	Kind       string               `json:"kind"` // e.g. "com.twitter.post"
	Executor   string               `json:"executor,omitempty"`
	Parameters map[string]Parameter `json:"parameters"`
}

// Parameter describes one declared program parameter.
type Parameter struct {
	Type        string   `json:"type"` // string, number, boolean, contact, location, ...
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// DeviceQuery represents a request to enumerate devices of a kind, used
// during disambiguation.
type DeviceQuery struct {
	Kind string `json:"kind"`
}

// Device represents one candidate device returned from a DeviceQuery.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// FilterClause represents one conjunctive clause of a permission or
// makerule filter.
type FilterClause struct {
	Field    string `json:"field"`
	Operator string `json:"operator"` // "==", "=~", ">", "<", ...
	Value    any    `json:"value"`
}
