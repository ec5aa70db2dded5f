package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update matched no rows
	// because another writer got there first, or when a uniqueness
	// constraint rejected an insert.
	ErrConflict = errors.New("conflicting concurrent update")
)
