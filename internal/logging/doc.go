// Package logging builds the slog logger used by every component.
//
// Text output uses a colorized handler; json output uses slog's JSON handler.
// Logs are written to stderr.
package logging
