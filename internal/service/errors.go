package service

import (
	"errors"

	"github.com/darusc/Passknight/internal/repository"
)

var (
	// ErrNotFound is returned when the vault or the item does not exist.
	ErrNotFound = repository.ErrNotFound

	// ErrConflict is returned when a name or login is already taken.
	ErrConflict = repository.ErrConflict

	// ErrInvalidRecord is returned for a record that cannot be stored.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidLogin is returned for a login unusable as a common name.
	ErrInvalidLogin = errors.New("invalid login")
)
