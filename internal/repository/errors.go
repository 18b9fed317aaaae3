// Package repository implements data access on MySQL. Sentinel errors
// defined here let higher layers distinguish failure scenarios without
// inspecting driver errors. ErrNotFound deliberately covers both "row
// missing" and "row not owned by caller" so existence never leaks.
package repository

import "errors"

// ErrNotFound is returned when an entity does not exist or is not visible
// to the caller. Handlers translate this into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update loses a race against
// concurrent state (capacity filled, status already changed, duplicate
// hold). Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
