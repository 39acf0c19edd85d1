package repository

import "errors"

var (
	// ErrInvalidEvent indicates an event that cannot be stored
	ErrInvalidEvent = errors.New("invalid analysis event")

	// ErrRepositoryUnavailable indicates the database could not be reached
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
