// Package logging assembles structured slog loggers for transcoderctl.
//
// It owns the console and JSON handlers, the fan-out that sends terse console
// output to stderr while the full JSON record lands in the log file, and the
// context helpers that tag lines with correlation and job identifiers. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
