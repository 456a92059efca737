// ABOUTME: Session, message, and agent catalog types as returned by the agent server
// ABOUTME: Decoding tolerates the field variants different server versions emit

package session

import (
	"encoding/json"
	"strings"
	"time"
)

// AgentSuffix is appended to agent names that lack it.
const AgentSuffix = ".yaml"

// NormalizeAgent returns name with the .yaml suffix.
func NormalizeAgent(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasSuffix(name, AgentSuffix) {
		return name
	}
	return name + AgentSuffix
}

// Agent is one entry of the server's agent catalog.
type Agent struct {
	Name        string
	Description string
	Multi       bool
}

// UnmarshalJSON accepts a bare string or an object carrying name or path.
func (a *Agent) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*a = Agent{Name: name}
		return nil
	}

	var wire struct {
		Name        string `json:"name"`
		Path        string `json:"path"`
		Description string `json:"description"`
		Multi       bool   `json:"multi"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	a.Name = wire.Name
	if a.Name == "" {
		a.Name = wire.Path
	}
	a.Description = wire.Description
	a.Multi = wire.Multi
	return nil
}

// Message is one turn in a session transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts role and content at the top level or nested under "message".
// Non-string content is kept as its raw JSON text.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
		Message *struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	role, content := wire.Role, wire.Content
	if role == "" && wire.Message != nil {
		role, content = wire.Message.Role, wire.Message.Content
	}
	m.Role = role
	m.Content = contentText(content)
	return nil
}

func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Session is the server's view of a conversation. Only the server mutates it;
// the client holds read-through copies.
type Session struct {
	ID            string
	Title         string
	CreatedAt     time.Time
	InputTokens   int
	OutputTokens  int
	MessageCount  int
	Messages      []Message
	ToolsApproved bool
	WorkingDir    string

	// Agent is the agent this client routes the session's turns to. Set locally.
	Agent string
}

// UnmarshalJSON decodes both the detailed session and the session list shapes.
func (s *Session) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID            string    `json:"id"`
		Title         string    `json:"title"`
		CreatedAt     string    `json:"created_at"`
		NumMessages   int       `json:"num_messages"`
		Messages      []Message `json:"messages"`
		ToolsApproved bool      `json:"tools_approved"`
		InputTokens   int       `json:"input_tokens"`
		OutputTokens  int       `json:"output_tokens"`
		WorkingDir    string    `json:"working_dir"`
		Pagination    *struct {
			TotalMessages int `json:"total_messages"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*s = Session{
		ID:            wire.ID,
		Title:         wire.Title,
		CreatedAt:     parseTime(wire.CreatedAt),
		InputTokens:   wire.InputTokens,
		OutputTokens:  wire.OutputTokens,
		Messages:      wire.Messages,
		ToolsApproved: wire.ToolsApproved,
		WorkingDir:    wire.WorkingDir,
	}

	switch {
	case wire.Pagination != nil && wire.Pagination.TotalMessages > 0:
		s.MessageCount = wire.Pagination.TotalMessages
	case len(wire.Messages) > 0:
		s.MessageCount = len(wire.Messages)
	default:
		s.MessageCount = wire.NumMessages
	}
	return nil
}

// TotalTokens returns input plus output tokens.
func (s *Session) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
