package store

import "errors"

// Errors returned by Document Store operations.
var (
	// ErrNotFound is returned by Update when the target id does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidID is returned when an operation requires a non-empty id.
	ErrInvalidID = errors.New("store: invalid document id")
	// ErrEqualityOnly is returned by DeleteOne when the query contains a
	// non-equality condition.
	ErrEqualityOnly = errors.New("store: deleteOne only supports equality conditions")
)
