// Package stream sends chat messages and consumes the agent's event stream.
//
// # Sending
//
// Client.Send posts the messages to /api/sessions/{id}/agent/{agent} and
// waits for response headers under a per-attempt timeout. Only that wait is
// bounded; once headers arrive the body may stall indefinitely until the
// transport closes or the caller cancels. A header timeout is retried through
// a retry.Policy up to its attempt budget. Every other failure returns at
// once:
//
//   - 401 calls the Invalidator and returns an error matching ErrAuthExpired
//   - other non-2xx statuses return *api.StatusError
//   - network failures return *TransportError
//
// Each session admits one open stream; a concurrent Send for the same
// session returns ErrSendInFlight until the first stream is closed.
//
// # Decoding
//
// The body is read line by line. Each "data:" line holds one JSON event whose
// "type" selects a struct (AgentChoice, ToolCall, TokenUsage, ...). Unknown
// types become Other. Payloads that fail to parse are counted, kept as
// DecodeErrors, and skipped. The sequence ends when the transport closes,
// whether or not a stream_stopped event was seen.
//
// # Dispatching
//
// Dispatch drains a Source into a Result: assistant text joined in arrival
// order and the last token usage snapshot. Text goes to the Sink as it
// arrives; all other events except errors go to Sink.OnProgress. An error
// event stops consumption with *AgentError.
package stream
