// ABOUTME: Tests for the event dispatcher
// ABOUTME: Covers text accumulation, usage snapshots, error events, and progress forwarding

package stream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/logging"
)

type recordingSink struct {
	texts    []string
	progress []Event
}

func (s *recordingSink) OnText(text string)  { s.texts = append(s.texts, text) }
func (s *recordingSink) OnProgress(ev Event) { s.progress = append(s.progress, ev) }

// sliceSource replays events and then reports err.
type sliceSource struct {
	events []Event
	i      int
	err    error
}

func (s *sliceSource) Next() bool {
	if s.i >= len(s.events) {
		return false
	}
	s.i++
	return true
}

func (s *sliceSource) Event() Event { return s.events[s.i-1] }
func (s *sliceSource) Err() error   { return s.err }

func TestDispatch_JoinsTextInOrder(t *testing.T) {
	input := "data: {\"type\":\"agent_choice\",\"content\":\"a\"}\n\n" +
		"data: {\"type\":\"agent_choice\",\"content\":\"b\"}\n\n" +
		"data: {\"type\":\"stream_stopped\"}\n\n"
	sink := &recordingSink{}

	res, err := Dispatch(context.Background(), NewDecoder(strings.NewReader(input), logging.Discard()), sink)
	require.NoError(t, err)

	assert.Equal(t, "ab", res.Text)
	assert.Equal(t, []string{"a", "b"}, sink.texts)
	assert.Equal(t, 3, res.Events)
	assert.Nil(t, res.Usage)
}

func TestDispatch_MalformedLineStillCapturesUsage(t *testing.T) {
	input := "data: not-json\n\n" +
		"data: {\"type\":\"token_usage\",\"usage\":{\"input_tokens\":7,\"output_tokens\":3,\"cost\":0.01}}\n\n"

	res, err := Dispatch(context.Background(), NewDecoder(strings.NewReader(input), logging.Discard()), nil)
	require.NoError(t, err)

	require.NotNil(t, res.Usage)
	assert.Equal(t, int64(7), res.Usage.InputTokens)
	assert.Equal(t, int64(10), res.Usage.TotalTokens)
	assert.InDelta(t, 0.01, res.Usage.Cost, 1e-9)
	assert.Equal(t, 1, res.Skipped)
}

func TestDispatch_LastUsageWins(t *testing.T) {
	src := &sliceSource{events: []Event{
		TokenUsage{Usage: Usage{InputTokens: 1}},
		AgentChoice{Content: "x"},
		TokenUsage{Usage: Usage{InputTokens: 2}},
	}}

	res, err := Dispatch(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Usage.InputTokens)
}

func TestDispatch_ErrorEventStops(t *testing.T) {
	src := &sliceSource{events: []Event{
		AgentChoice{Content: "partial "},
		ErrorEvent{Message: "model overloaded", AgentName: "root"},
		AgentChoice{Content: "never"},
	}}
	sink := &recordingSink{}

	res, err := Dispatch(context.Background(), src, sink)

	var agentErr *AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, "model overloaded", agentErr.Message)
	assert.Equal(t, "agent error: model overloaded", agentErr.Error())
	assert.Equal(t, "partial ", res.Text)
	assert.Equal(t, 2, src.i, "nothing consumed after the error")
	assert.Equal(t, []string{"partial "}, sink.texts)
}

func TestDispatch_ProgressNeverAffectsText(t *testing.T) {
	progress := []Event{
		StreamStarted{SessionID: "s"},
		PartialToolCall{Name: "search"},
		ToolCall{Name: "search", Arguments: "{}"},
		ToolCallResponse{Name: "search", Response: "ok"},
		Warning{Message: "careful"},
		Shell{Output: "ls"},
		Reasoning{Content: "hmm"},
		Other{Type: "session_title"},
	}
	sink := &recordingSink{}

	res, err := Dispatch(context.Background(), &sliceSource{events: progress}, sink)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Equal(t, progress, sink.progress)
}

func TestDispatch_TransportErrorReturnsPartial(t *testing.T) {
	reset := errors.New("connection reset")
	src := &sliceSource{events: []Event{AgentChoice{Content: "half"}}, err: reset}

	res, err := Dispatch(context.Background(), src, nil)
	require.ErrorIs(t, err, reset)
	assert.Equal(t, "half", res.Text)
}

func TestDispatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancelSink{cancel: cancel}
	src := &sliceSource{events: []Event{AgentChoice{Content: "a"}, AgentChoice{Content: "b"}}}

	res, err := Dispatch(ctx, src, sink)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "a", res.Text)
}

type cancelSink struct {
	NopSink
	cancel context.CancelFunc
}

func (s *cancelSink) OnText(string) { s.cancel() }

func TestAccumulator(t *testing.T) {
	var acc Accumulator
	assert.Empty(t, acc.Text())
	assert.Nil(t, acc.Usage())

	acc.AddText("x")
	acc.AddText("")
	acc.AddText("y")
	acc.SetUsage(Usage{OutputTokens: 4})

	assert.Equal(t, "xy", acc.Text())
	assert.Equal(t, int64(4), acc.Usage().OutputTokens)
}

func TestAgentError_Empty(t *testing.T) {
	assert.Equal(t, "agent error: unknown error", (&AgentError{}).Error())
}
