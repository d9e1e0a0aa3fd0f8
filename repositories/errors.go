package repositories

import "errors"

// ErrDuplicateKey is returned when a unique index row is already held by another content
var ErrDuplicateKey = errors.New("unique index key already exists")
