// Package api is the HTTP client for the Distributed Transcoder backend and
// the transport DTOs it exchanges.
//
// # Key Types
//
// Client: issues REST calls for jobs, presets, playlists, uploads and signed
// downloads. Every call takes a context and stamps the request with an
// X-Request-ID header plus the optional bearer token.
//
// Job, Preset, Playlist: read-mostly copies of backend-owned records. Job
// state stays string-typed; the State* constants name the values the backend
// emits today.
//
// Timestamp: decodes both naive and zoned ISO-8601 values, and null.
//
// # Errors
//
// Non-2xx responses become *HTTPError. IsNotFound separates the recoverable
// 404 case (empty page, free identifier) from everything else. Message
// extracts the backend "detail" text for display. Dial and connection
// failures are tagged with ErrUnavailable.
package api
