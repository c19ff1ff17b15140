package store

import "errors"

// ErrStateConflict reports that an incident left the expected state before
// a guarded update could apply.
var ErrStateConflict = errors.New("incident state changed concurrently")
