// Package ledger keeps a local SQLite record of what the console has seen and
// done: the last job page fetched from the backend, used for offline
// listings, and the history of submissions made from this machine.
//
// The store retries on SQLITE_BUSY and refuses to open a database written
// with a different schema version.
package ledger
