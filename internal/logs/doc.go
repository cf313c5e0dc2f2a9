// Package logs reads the console's structured log file.
//
// Tail returns the last N lines or everything after a byte offset, optionally
// waiting for new lines. Entry parses one JSON record and Filter selects
// records by level, job and component.
package logs
