// ABOUTME: Line-oriented decoder turning an event-stream body into typed events
// ABOUTME: Unparsable payloads are recorded and skipped; only transport errors end decoding early

package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

const (
	initialLineBuffer = 64 << 10
	maxLineLength     = 8 << 20
	maxKeptErrors     = 32
	payloadPreview    = 256
)

// ErrLineTooLong is recorded for a line longer than the decoder accepts. The
// line is discarded and decoding continues with the next one.
var ErrLineTooLong = errors.New("event line too long")

// DecodeError describes one payload that could not be decoded.
type DecodeError struct {
	Line    int
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: decoding event: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder reads "data: <json>" lines and yields events in arrival order.
// Blank data lines and event:, id:, retry: and comment lines are ignored.
type Decoder struct {
	r       *bufio.Reader
	buf     []byte
	readErr error
	logger  *slog.Logger

	line    int
	ev      Event
	err     error
	skipped int
	errs    []*DecodeError
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		r:      bufio.NewReaderSize(r, initialLineBuffer),
		buf:    make([]byte, 0, initialLineBuffer),
		logger: logger,
	}
}

// Next advances to the next event. It returns false when the input ends or
// fails; Err distinguishes the two.
func (d *Decoder) Next() bool {
	d.ev = nil
	for {
		line, tooLong, err := d.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.err = err
			}
			return false
		}
		d.line++

		if tooLong {
			d.skip(&DecodeError{Line: d.line, Payload: string(line), Err: ErrLineTooLong})
			continue
		}

		payload, ok := dataPayload(line)
		if !ok {
			continue
		}

		ev, err := DecodeEvent(payload)
		if err != nil {
			d.skip(&DecodeError{Line: d.line, Payload: string(payload), Err: err})
			continue
		}
		d.ev = ev
		return true
	}
}

// readLine returns the next line without its newline. A line longer than
// maxLineLength is drained from the input and returned as a short prefix with
// tooLong set. A final line without a newline is returned before the error
// that ended the input.
func (d *Decoder) readLine() (line []byte, tooLong bool, err error) {
	if d.readErr != nil {
		return nil, false, d.readErr
	}

	d.buf = d.buf[:0]
	for {
		chunk, err := d.r.ReadSlice('\n')
		if !tooLong {
			if len(d.buf)+len(chunk) > maxLineLength {
				tooLong = true
				d.buf = append(d.buf, chunk[:min(len(chunk), payloadPreview)]...)
				d.buf = d.buf[:min(len(d.buf), payloadPreview)]
			} else {
				d.buf = append(d.buf, chunk...)
			}
		}

		switch {
		case err == nil:
			return bytes.TrimSuffix(d.buf, []byte("\n")), tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case len(d.buf) > 0 || tooLong:
			d.readErr = err
			return d.buf, tooLong, nil
		default:
			d.readErr = err
			return nil, false, err
		}
	}
}

// Event returns the event read by the last successful Next.
func (d *Decoder) Event() Event {
	return d.ev
}

// Err returns the error that ended decoding, or nil at a clean end of input.
func (d *Decoder) Err() error {
	return d.err
}

// Skipped returns how many payloads failed to decode.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeErrors returns the most recent decode failures.
func (d *Decoder) DecodeErrors() []*DecodeError {
	return append([]*DecodeError(nil), d.errs...)
}

func (d *Decoder) skip(de *DecodeError) {
	d.skipped++
	if len(d.errs) == maxKeptErrors {
		d.errs = d.errs[1:]
	}
	d.errs = append(d.errs, de)
	d.logger.Debug("skipping undecodable event", "line", de.Line, "error", de.Err)
}

// dataPayload returns the payload of a non-blank data line.
func dataPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r")
	rest, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return nil, false
	}
	rest = bytes.TrimSpace(rest)
	if len(rest) == 0 {
		return nil, false
	}
	return rest, true
}

type toolCallWire struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

func (w toolCallWire) name() string {
	if w.Function.Name != "" {
		return w.Function.Name
	}
	return w.Name
}

func (w toolCallWire) arguments() string {
	if len(w.Function.Arguments) > 0 {
		return rawText(w.Function.Arguments)
	}
	return rawText(w.Arguments)
}

type eventWire struct {
	Type      string          `json:"type"`
	AgentName string          `json:"agent_name"`
	Content   json.RawMessage `json:"content"`
	Message   json.RawMessage `json:"message"`
	Error     json.RawMessage `json:"error"`
	Output    json.RawMessage `json:"output"`
	SessionID string          `json:"session_id"`
	Response  json.RawMessage `json:"response"`
	ToolCall  *toolCallWire   `json:"tool_call"`
	Usage     *Usage          `json:"usage"`
}

// DecodeEvent decodes one JSON payload. Unknown types become Other.
func DecodeEvent(payload []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	if !knownKind(Kind(env.Type)) {
		return Other{Type: env.Type, Raw: append(json.RawMessage(nil), payload...)}, nil
	}

	var w eventWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	content, message := rawText(w.Content), rawText(w.Message)

	tc := w.ToolCall
	if tc == nil {
		tc = &toolCallWire{}
	}

	switch Kind(w.Type) {
	case KindAgentChoice:
		return AgentChoice{Content: content, AgentName: w.AgentName}, nil
	case KindReasoning:
		return Reasoning{Content: content, AgentName: w.AgentName}, nil
	case KindToolCall:
		return ToolCall{ID: tc.ID, Name: tc.name(), Arguments: tc.arguments(), AgentName: w.AgentName}, nil
	case KindPartialToolCall:
		return PartialToolCall{ID: tc.ID, Name: tc.name(), AgentName: w.AgentName}, nil
	case KindToolCallResponse:
		return ToolCallResponse{ID: tc.ID, Name: tc.name(), Response: rawText(w.Response), AgentName: w.AgentName}, nil
	case KindTokenUsage:
		var u Usage
		if w.Usage != nil {
			u = *w.Usage
		}
		if u.TotalTokens == 0 {
			u.TotalTokens = u.InputTokens + u.OutputTokens
		}
		return TokenUsage{Usage: u, AgentName: w.AgentName}, nil
	case KindWarning:
		return Warning{Message: firstNonEmpty(message, content), AgentName: w.AgentName}, nil
	case KindShell:
		return Shell{Output: firstNonEmpty(rawText(w.Output), rawText(w.Error)), AgentName: w.AgentName}, nil
	case KindError:
		return ErrorEvent{Message: firstNonEmpty(rawText(w.Error), message), AgentName: w.AgentName}, nil
	case KindStreamStarted:
		return StreamStarted{SessionID: w.SessionID, AgentName: w.AgentName}, nil
	case KindStreamStopped:
		return StreamStopped{SessionID: w.SessionID, AgentName: w.AgentName}, nil
	default:
		return Other{Type: w.Type, Raw: append(json.RawMessage(nil), payload...)}, nil
	}
}

func knownKind(k Kind) bool {
	switch k {
	case KindAgentChoice, KindReasoning, KindToolCall, KindPartialToolCall, KindToolCallResponse,
		KindTokenUsage, KindWarning, KindShell, KindError, KindStreamStarted, KindStreamStopped:
		return true
	}
	return false
}

// rawText unquotes JSON strings and returns other JSON values verbatim.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
