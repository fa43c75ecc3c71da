package session

import "errors"

var (
	// ErrIndexNotReady means the session has no ready index to answer from,
	// either because nothing was uploaded or because indexing is still
	// running or failed.
	ErrIndexNotReady = errors.New("session: index not ready")

	// ErrQuotaExceeded means the session spent its usage budget. The
	// session's stored data is purged when this fires.
	ErrQuotaExceeded = errors.New("session: usage quota exceeded")

	// ErrIndexUnavailable means the status ledger says ready but the index
	// artifacts could not be loaded.
	ErrIndexUnavailable = errors.New("session: index unavailable")

	// ErrNoText means the uploaded document yielded no indexable text.
	ErrNoText = errors.New("session: document contains no extractable text")
)
