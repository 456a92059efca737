// Package chat runs the interactive conversation with one agent.
//
// The loop is strictly request/response: a line is read, sent, and its reply
// streamed to the terminal before the next line is read. Lines starting with
// a known command word are handled locally. An expired credential ends the
// loop; any other send failure is reported and the user may try again.
package chat
