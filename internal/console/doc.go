// Package console wraps interactive input for the chat client.
//
// Reads honor context cancellation: a blocked read keeps running in the
// background and its result is handed to the next caller, so Ctrl-C during a
// prompt never loses or duplicates input. Passwords are read without echo
// through golang.org/x/term when stdin is a terminal.
package console
