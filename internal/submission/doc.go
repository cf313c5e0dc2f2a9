// Package submission implements the multi-step submit flows: claim an
// identifier, upload the source file under a name derived from it, pick a
// preset or literal pipeline, then submit.
//
// JobDraft walks idle -> id-validating -> id-valid|id-invalid -> uploading ->
// uploaded -> submitting -> submitted. Submit rejects incomplete drafts with
// ErrValidation before any request is sent. A failed submission keeps the
// draft so the operator can retry; a successful one raises a notice and
// resets the draft after the configured delay.
//
// PlaylistDraft follows the same shape for playlists, fanning one upload out
// to several presets.
package submission
