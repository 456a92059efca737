// ABOUTME: Typed protocol events carried on the agent response stream
// ABOUTME: One struct per event type plus Other for types this client does not know

package stream

import "encoding/json"

// Kind is the "type" field of a stream event.
type Kind string

const (
	KindAgentChoice      Kind = "agent_choice"
	KindReasoning        Kind = "agent_choice_reasoning"
	KindToolCall         Kind = "tool_call"
	KindPartialToolCall  Kind = "partial_tool_call"
	KindToolCallResponse Kind = "tool_call_response"
	KindTokenUsage       Kind = "token_usage"
	KindWarning          Kind = "warning"
	KindShell            Kind = "shell"
	KindError            Kind = "error"
	KindStreamStarted    Kind = "stream_started"
	KindStreamStopped    Kind = "stream_stopped"
)

// Event is one decoded stream event.
type Event interface {
	Kind() Kind
}

// AgentChoice is a chunk of assistant text.
type AgentChoice struct {
	Content   string
	AgentName string
}

// Reasoning is a chunk of the model's reasoning text.
type Reasoning struct {
	Content   string
	AgentName string
}

// ToolCall announces a tool invocation. Arguments is the raw argument text.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	AgentName string
}

// PartialToolCall announces a tool call still being generated.
type PartialToolCall struct {
	ID        string
	Name      string
	AgentName string
}

// ToolCallResponse reports a finished tool call.
type ToolCallResponse struct {
	ID        string
	Name      string
	Response  string
	AgentName string
}

// Usage is a token accounting snapshot.
type Usage struct {
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	TotalTokens   int64   `json:"total_tokens"`
	ContextLength int64   `json:"context_length"`
	ContextLimit  int64   `json:"context_limit"`
	Cost          float64 `json:"cost"`
}

// TokenUsage carries the usage for the current turn.
type TokenUsage struct {
	Usage     Usage
	AgentName string
}

// Warning is a non-fatal notice from the server.
type Warning struct {
	Message   string
	AgentName string
}

// Shell carries output from a shell tool.
type Shell struct {
	Output    string
	AgentName string
}

// ErrorEvent reports a failure inside the agent run.
type ErrorEvent struct {
	Message   string
	AgentName string
}

// StreamStarted marks the start of an agent run.
type StreamStarted struct {
	SessionID string
	AgentName string
}

// StreamStopped marks the end of an agent run. The stream itself ends when
// the transport closes.
type StreamStopped struct {
	SessionID string
	AgentName string
}

// Other is any event type not listed above.
type Other struct {
	Type string
	Raw  json.RawMessage
}

func (AgentChoice) Kind() Kind      { return KindAgentChoice }
func (Reasoning) Kind() Kind        { return KindReasoning }
func (ToolCall) Kind() Kind         { return KindToolCall }
func (PartialToolCall) Kind() Kind  { return KindPartialToolCall }
func (ToolCallResponse) Kind() Kind { return KindToolCallResponse }
func (TokenUsage) Kind() Kind       { return KindTokenUsage }
func (Warning) Kind() Kind          { return KindWarning }
func (Shell) Kind() Kind            { return KindShell }
func (ErrorEvent) Kind() Kind       { return KindError }
func (StreamStarted) Kind() Kind    { return KindStreamStarted }
func (StreamStopped) Kind() Kind    { return KindStreamStopped }
func (o Other) Kind() Kind          { return Kind(o.Type) }
