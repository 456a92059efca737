// ABOUTME: Dispatcher consuming stream events into accumulated text and usage
// ABOUTME: Streams text to a display sink and forwards tool and notice events as progress

package stream

import (
	"context"
	"strings"
)

// Sink receives display side effects while a stream is dispatched.
type Sink interface {
	// OnText receives assistant text as it arrives.
	OnText(text string)
	// OnProgress receives every non-text event except errors.
	OnProgress(ev Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) OnText(string)     {}
func (NopSink) OnProgress(Event) {}

// Source is a sequence of events, such as a *Stream or a *Decoder.
type Source interface {
	Next() bool
	Event() Event
	Err() error
}

// AgentError is an error event from the server. It ends the current message
// only; the session stays usable.
type AgentError struct {
	Message   string
	AgentName string
}

func (e *AgentError) Error() string {
	if e.Message == "" {
		return "agent error: unknown error"
	}
	return "agent error: " + e.Message
}

// Accumulator collects assistant text and the last usage snapshot for one message.
type Accumulator struct {
	parts []string
	usage *Usage
}

// AddText appends a chunk of assistant text.
func (a *Accumulator) AddText(s string) {
	a.parts = append(a.parts, s)
}

// SetUsage records u, replacing any earlier snapshot.
func (a *Accumulator) SetUsage(u Usage) {
	a.usage = &u
}

// Text joins the text chunks in arrival order.
func (a *Accumulator) Text() string {
	return strings.Join(a.parts, "")
}

// Usage returns the last usage snapshot, or nil if none arrived.
func (a *Accumulator) Usage() *Usage {
	return a.usage
}

// Result is the outcome of dispatching one stream.
type Result struct {
	Text    string
	Usage   *Usage
	Events  int
	Skipped int
}

// Dispatch consumes src until it ends and returns the accumulated result.
// An error event stops consumption and returns *AgentError along with the
// text received so far. A transport failure mid-stream returns its error
// along with the partial result.
func Dispatch(ctx context.Context, src Source, sink Sink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}

	var (
		acc    Accumulator
		events int
		err    error
	)

	for err == nil && src.Next() {
		events++
		switch ev := src.Event().(type) {
		case AgentChoice:
			acc.AddText(ev.Content)
			sink.OnText(ev.Content)
		case TokenUsage:
			acc.SetUsage(ev.Usage)
			sink.OnProgress(ev)
		case ErrorEvent:
			err = &AgentError{Message: ev.Message, AgentName: ev.AgentName}
		default:
			sink.OnProgress(ev)
		}
		if err == nil {
			err = ctx.Err()
		}
	}
	if err == nil {
		err = src.Err()
	}

	res := &Result{Text: acc.Text(), Usage: acc.Usage(), Events: events}
	if sk, ok := src.(interface{ Skipped() int }); ok {
		res.Skipped = sk.Skipped()
	}
	return res, err
}
