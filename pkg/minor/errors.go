package minor

import "errors"

// Standard minor errors. The ND codec maps these onto wire error codes.
var (
	// ErrNotFound indicates that no minor is registered under the id.
	ErrNotFound = errors.New("minor not found")

	// ErrExists indicates that a minor with the same id is already registered.
	ErrExists = errors.New("minor already registered")

	// ErrInvalidID indicates an id outside [0, MaxMinors).
	ErrInvalidID = errors.New("minor id out of range")

	// ErrReadOnly indicates a write against a read-only store or minor.
	//
	// Protocol Mapping:
	//   - ND: EROFS (30)
	ErrReadOnly = errors.New("store is read-only")

	// ErrNoSpace indicates the store cannot grow to hold the write.
	//
	// Protocol Mapping:
	//   - ND: ENOSPC (28)
	ErrNoSpace = errors.New("no space left on store")

	// ErrTooLarge indicates a store whose block count does not fit in 32 bits.
	ErrTooLarge = errors.New("store too large for ND")

	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("store is closed")
)
