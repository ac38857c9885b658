package db

import "errors"

// ErrNotFound indicates a missing row.
var ErrNotFound = errors.New("record not found")
