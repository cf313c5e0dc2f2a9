// Command transcoderctl is the operator console for the Distributed
// Transcoder backend.
//
// It lists and watches jobs with live progress, submits jobs and playlists
// (validating the id, uploading the source, then creating the job), authors
// presets, downloads finished outputs through signed URLs, and keeps a local
// ledger of fetched pages and submissions. `transcoderctl sandbox` starts an
// in-memory backend for trying the console without a deployment.
package main
