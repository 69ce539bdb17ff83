package core

import "errors"

// Structural failures abort a run. Everything else degrades a single
// document's extraction quality or becomes a report finding and the batch
// continues.
var (
	// ErrCanonicalTableMissing means the canonicalization table file could
	// not be read at all. A run cannot start without it.
	ErrCanonicalTableMissing = errors.New("canonicalization table missing")

	// ErrCanonicalTableInvalid means the table file exists but does not
	// parse as a valid table.
	ErrCanonicalTableInvalid = errors.New("canonicalization table invalid")

	// ErrRunAborted means the batch run was cancelled before completion.
	// A partial ledger from an aborted run is never published.
	ErrRunAborted = errors.New("reconciliation run aborted")
)
