package domain

import "errors"

var (
	ErrStreamNotFound = errors.New("stream not found")
	ErrStreamExists   = errors.New("stream already exists")
	ErrEmptyStream    = errors.New("stream has no observations")
	ErrEmptyBatch     = errors.New("observation batch is empty")
	ErrBatchTooLarge  = errors.New("observation batch exceeds maximum size")
)
