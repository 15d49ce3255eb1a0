// Package remote defines the Remote Store Port consumed by the sync mediator
// and the history debouncer, and an HTTPS implementation of it that talks to
// the Passknight document store over mutual TLS.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/darusc/Passknight/internal/models"
)

// Store is the remote document store backing a vault. A non-nil error means
// no state change occurred, whatever the underlying store actually did.
type Store interface {
	// FetchVault returns the whole vault or an error matching ErrNotFound.
	FetchVault(ctx context.Context) (*models.Vault, error)
	// AddItem persists a new sealed item.
	AddItem(ctx context.Context, item models.Item) error
	// EditItem replaces original with the sealed item.
	EditItem(ctx context.Context, original, item models.Item) error
	// DeleteItem removes the item.
	DeleteItem(ctx context.Context, item models.Item) error
	// UpdateHistory overwrites the generator history with the full list.
	UpdateHistory(ctx context.Context, history []string) error
	// SignOut drops the session; later calls fail.
	SignOut()
}

// ErrorKind classifies a failed remote operation.
type ErrorKind int

const (
	// Unknown covers server faults and unreadable responses.
	Unknown ErrorKind = iota
	// Unreachable means the request never got an answer.
	Unreachable
	// Rejected means the store refused the request.
	Rejected
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned when the vault or item does not exist remotely.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the store refuses a duplicate name.
	ErrConflict = errors.New("conflict")

	// ErrSignedOut is returned by every operation after SignOut.
	ErrSignedOut = errors.New("signed out")
)

// RemoteError reports a failed remote operation.
type RemoteError struct {
	// Op is the port operation, e.g. "add item".
	Op string
	// Kind classifies the failure.
	Kind ErrorKind
	// Status is the HTTP status when the store answered.
	Status int
	// Err is the underlying cause.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or Unknown when err is not a
// RemoteError.
func KindOf(err error) ErrorKind {
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return Unknown
}
