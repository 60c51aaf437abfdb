// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrPrecondition  = errors.New("precondition failed")
	ErrBusy          = errors.New("operation already in progress")
	ErrNoHypergraph  = errors.New("no hypergraph")
)
