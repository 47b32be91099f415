package storage

import "errors"

// ErrNotFound is returned when a requested row does not exist, including
// the first read of a store that has never been written.
var ErrNotFound = errors.New("storage: not found")
