// ABOUTME: Tests for the event-stream decoder
// ABOUTME: Covers framing, every event shape, malformed payloads, and transport failures

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/logging"
)

func decodeAll(t *testing.T, input string) ([]Event, *Decoder) {
	t.Helper()
	d := NewDecoder(strings.NewReader(input), logging.Discard())
	var events []Event
	for d.Next() {
		events = append(events, d.Event())
	}
	return events, d
}

func TestDecoder_PreservesOrder(t *testing.T) {
	input := "data: {\"type\":\"agent_choice\",\"content\":\"a\"}\n\n" +
		"data: {\"type\":\"agent_choice\",\"content\":\"b\"}\n\n" +
		"data: {\"type\":\"stream_stopped\"}\n\n"

	events, d := decodeAll(t, input)
	require.NoError(t, d.Err())
	assert.Equal(t, []Event{
		AgentChoice{Content: "a"},
		AgentChoice{Content: "b"},
		StreamStopped{},
	}, events)
}

func TestDecoder_IgnoresNonDataLines(t *testing.T) {
	input := ": keepalive\n" +
		"event: message\n" +
		"id: 7\n" +
		"retry: 1000\n" +
		"data:\n" +
		"data:    \n" +
		"data:{\"type\":\"agent_choice\",\"content\":\"no space\"}\r\n" +
		"\n"

	events, d := decodeAll(t, input)
	require.NoError(t, d.Err())
	assert.Equal(t, []Event{AgentChoice{Content: "no space"}}, events)
	assert.Zero(t, d.Skipped())
}

func TestDecoder_SkipsMalformedAndContinues(t *testing.T) {
	input := "data: not-json\n\n" +
		"data: {\"type\":\"token_usage\",\"usage\":{\"input_tokens\":10,\"output_tokens\":5}}\n\n"

	events, d := decodeAll(t, input)
	require.NoError(t, d.Err())
	require.Len(t, events, 1)
	assert.Equal(t, TokenUsage{Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}, events[0])

	assert.Equal(t, 1, d.Skipped())
	errs := d.DecodeErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Line)
	assert.Equal(t, "not-json", errs[0].Payload)
	assert.Contains(t, errs[0].Error(), "line 1")
}

func TestDecoder_KeepsBoundedErrors(t *testing.T) {
	input := strings.Repeat("data: {broken\n", maxKeptErrors+5)

	events, d := decodeAll(t, input)
	assert.Empty(t, events)
	assert.Equal(t, maxKeptErrors+5, d.Skipped())
	errs := d.DecodeErrors()
	assert.Len(t, errs, maxKeptErrors)
	assert.Equal(t, maxKeptErrors+5, errs[len(errs)-1].Line)
}

func TestDecoder_EndsWithoutStreamStopped(t *testing.T) {
	events, d := decodeAll(t, "data: {\"type\":\"agent_choice\",\"content\":\"partial\"}\n")
	require.NoError(t, d.Err())
	assert.Len(t, events, 1)
	assert.False(t, d.Next())
}

type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestDecoder_SkipsOverlongLineAndContinues(t *testing.T) {
	huge := "data: {\"type\":\"tool_call_response\",\"response\":\"" + strings.Repeat("x", 9<<20) + "\"}\n\n"
	input := "data: {\"type\":\"agent_choice\",\"content\":\"a\"}\n\n" +
		huge +
		"data: {\"type\":\"agent_choice\",\"content\":\"b\"}\n\n" +
		"data: {\"type\":\"token_usage\",\"usage\":{\"input_tokens\":2,\"output_tokens\":1}}\n\n"

	d := NewDecoder(strings.NewReader(input), logging.Discard())
	res, err := Dispatch(context.Background(), d, nil)
	require.NoError(t, err)

	assert.Equal(t, "ab", res.Text)
	require.NotNil(t, res.Usage)
	assert.Equal(t, int64(3), res.Usage.TotalTokens)
	assert.Equal(t, 1, res.Skipped)

	errs := d.DecodeErrors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrLineTooLong)
	assert.Equal(t, 3, errs[0].Line)
	assert.LessOrEqual(t, len(errs[0].Payload), payloadPreview)
}

func TestDecoder_FinalLineWithoutNewline(t *testing.T) {
	events, d := decodeAll(t, "data: {\"type\":\"agent_choice\",\"content\":\"tail\"}")
	require.NoError(t, d.Err())
	assert.Equal(t, []Event{AgentChoice{Content: "tail"}}, events)
}

func TestDecoder_TransportErrorEndsStream(t *testing.T) {
	reset := errors.New("connection reset")
	d := NewDecoder(&failingReader{data: "data: {\"type\":\"agent_choice\",\"content\":\"x\"}\n", err: reset}, logging.Discard())

	require.True(t, d.Next())
	assert.False(t, d.Next())
	assert.ErrorIs(t, d.Err(), reset)
}

func TestDecoder_UnexpectedEOFIsAnError(t *testing.T) {
	d := NewDecoder(&failingReader{err: io.ErrUnexpectedEOF}, logging.Discard())
	assert.False(t, d.Next())
	assert.ErrorIs(t, d.Err(), io.ErrUnexpectedEOF)
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name:    "agent choice",
			payload: `{"type":"agent_choice","content":"hello","agent_name":"root"}`,
			want:    AgentChoice{Content: "hello", AgentName: "root"},
		},
		{
			name:    "reasoning",
			payload: `{"type":"agent_choice_reasoning","content":"thinking"}`,
			want:    Reasoning{Content: "thinking"},
		},
		{
			name:    "tool call with function",
			payload: `{"type":"tool_call","tool_call":{"id":"c1","function":{"name":"read_file","arguments":"{\"path\":\"a.txt\"}"}}}`,
			want:    ToolCall{ID: "c1", Name: "read_file", Arguments: `{"path":"a.txt"}`},
		},
		{
			name:    "tool call flat with object arguments",
			payload: `{"type":"tool_call","tool_call":{"name":"shell","arguments":{"cmd":"ls"}}}`,
			want:    ToolCall{Name: "shell", Arguments: `{"cmd":"ls"}`},
		},
		{
			name:    "tool call without tool_call",
			payload: `{"type":"tool_call"}`,
			want:    ToolCall{},
		},
		{
			name:    "partial tool call",
			payload: `{"type":"partial_tool_call","tool_call":{"function":{"name":"search"}}}`,
			want:    PartialToolCall{Name: "search"},
		},
		{
			name:    "tool call response",
			payload: `{"type":"tool_call_response","tool_call":{"id":"c1","function":{"name":"search"}},"response":"3 results"}`,
			want:    ToolCallResponse{ID: "c1", Name: "search", Response: "3 results"},
		},
		{
			name:    "token usage with total and cost",
			payload: `{"type":"token_usage","usage":{"input_tokens":1,"output_tokens":2,"total_tokens":9,"context_length":100,"context_limit":1000,"cost":0.25}}`,
			want:    TokenUsage{Usage: Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 9, ContextLength: 100, ContextLimit: 1000, Cost: 0.25}},
		},
		{
			name:    "token usage without usage",
			payload: `{"type":"token_usage"}`,
			want:    TokenUsage{},
		},
		{
			name:    "warning",
			payload: `{"type":"warning","message":"slow down"}`,
			want:    Warning{Message: "slow down"},
		},
		{
			name:    "shell output",
			payload: `{"type":"shell","output":"total 0"}`,
			want:    Shell{Output: "total 0"},
		},
		{
			name:    "shell output in error field",
			payload: `{"type":"shell","error":"file.txt"}`,
			want:    Shell{Output: "file.txt"},
		},
		{
			name:    "error in error field",
			payload: `{"type":"error","error":"model overloaded"}`,
			want:    ErrorEvent{Message: "model overloaded"},
		},
		{
			name:    "error in message field",
			payload: `{"type":"error","message":"bad request"}`,
			want:    ErrorEvent{Message: "bad request"},
		},
		{
			name:    "stream started",
			payload: `{"type":"stream_started","session_id":"s1","agent_name":"root"}`,
			want:    StreamStarted{SessionID: "s1", AgentName: "root"},
		},
		{
			name:    "unknown type with odd fields",
			payload: `{"type":"session_title","content":{"nested":true},"title":"Pirates"}`,
			want:    Other{Type: "session_title", Raw: []byte(`{"type":"session_title","content":{"nested":true},"title":"Pirates"}`)},
		},
		{
			name:    "missing type",
			payload: `{"content":"x"}`,
			want:    Other{Raw: []byte(`{"content":"x"}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	for _, payload := range []string{`not-json`, `[1,2]`, `42`, `{"type":"agent_choice","usage":"x","tool_call":5}`} {
		_, err := DecodeEvent([]byte(payload))
		assert.Error(t, err, payload)
	}
}

func TestOther_Kind(t *testing.T) {
	assert.Equal(t, Kind("session_title"), Other{Type: "session_title"}.Kind())
	assert.Equal(t, KindShell, Shell{}.Kind())
}
