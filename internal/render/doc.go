// Package render writes the chat to the terminal.
//
// Printer is the stream.Sink for live replies: assistant text is written as
// it arrives and tool activity is shown as short bracketed notices. Verbose
// mode adds tool arguments, partial tool calls, shell output and unknown
// events. PlainText flattens markdown for transcript listings.
package render
