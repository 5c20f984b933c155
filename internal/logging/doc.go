// Package logging builds the slog loggers used across framefeed and defines
// the standardized structured-field vocabulary for the import pipeline.
//
// Console output is a compact single-line format for interactive use; JSON
// output is intended for the log file and external collection. Field constants
// keep session, batch, and media identifiers consistent between components so
// a single import can be traced end to end.
package logging
