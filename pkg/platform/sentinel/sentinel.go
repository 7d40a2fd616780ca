// Package sentinel holds the storage facts that document and application
// stores report. Services translate them into domain errors at the edge of
// each operation; handlers never see them.
package sentinel

import "errors"

var (
	// ErrNotFound: no record, blob or cached entry under the requested key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a compare-and-swap update saw a status other than the expected one.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: Create was called with an id that already exists.
	ErrAlreadyUsed = errors.New("already used")
)
