// Package protocol provides shared data structures used across Cascade
// components. These types can be imported by external skill
// implementations and extensions.
package protocol

// Intent represents the arbiter's classification of a user turn.
type Intent struct {
	HandlerID  string  `json:"handler_id"`
	Kind       string  `json:"kind"` // CommandAnalysisResult.Type, as a string
	Confidence float64 `json:"confidence,omitempty"`
}

// TurnRequest represents an incoming user turn handed to an external
// skill handler.
type TurnRequest struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"` // recent transcript, if the skill wants it
	SpeakerID string `json:"speaker_id,omitempty"`
}

// TurnResponse represents a reply from an external skill handler.
type TurnResponse struct {
	RequestID string       `json:"request_id"`
	Success   bool         `json:"success"`
	Text      string       `json:"text,omitempty"`
	Error     string       `json:"error,omitempty"`
	Metadata  ResponseMeta `json:"metadata"`
}

// ResponseMeta contains metadata about a skill's response.
type ResponseMeta struct {
	Confidence float64 `json:"confidence"`
	DurationMs int64   `json:"duration_ms"`
	Expecting  string  `json:"expecting,omitempty"` // ValueCategory, as a string
}

// SkillCapability describes what a dynamically-loaded skill handler does.
type SkillCapability struct {
	DeviceKind  string   `json:"device_kind"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// SkillStatus represents the current status of a dynamically-loaded skill
// handler.
type SkillStatus struct {
	UniqueID     string `json:"unique_id"`
	Attached     bool   `json:"attached"`
	TurnsHandled int    `json:"turns_handled"`
	LastUsed     int64  `json:"last_used"`
}
