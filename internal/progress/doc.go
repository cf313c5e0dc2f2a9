// Package progress keeps one realtime progress subscription per active job.
//
// The backend pushes three payload shapes on /progress/{job_id}: progress
// updates carrying a numeric percent, a terminal result carrying the final
// status, and error notices. Decode resolves the shape from an explicit
// "type" tag when present and otherwise from field presence, rejecting
// payloads that match more than one shape.
//
// Manager owns the tracked-connection set and the job-id keyed progress map.
// Subscribe is idempotent per job id, a result removes the job's progress
// entry and fires OnResult once, and any socket close releases the job id
// so a later Sync can subscribe again.
package progress
