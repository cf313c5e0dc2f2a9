// Package sandbox implements an in-memory stand-in for the transcoder
// backend. It serves the same REST routes and progress WebSocket the console
// talks to, stores uploads in memory, and lets callers drive job progress
// through PublishProgress and CompleteJob or the built-in simulated worker.
//
// It backs the `transcoderctl sandbox` command and the contract tests of the
// client packages.
package sandbox
