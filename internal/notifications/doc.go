// Package notifications pushes job results to an ntfy topic.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers invoke it unconditionally.
package notifications
