package models

import (
	"errors"
	"fmt"
)

// Name errors are local, pre-flight and recoverable by editing the form.
var (
	// ErrEmptyName indicates the name is empty once whitespace is removed.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrDuplicateName indicates another item of the same kind already uses the name.
	ErrDuplicateName = errors.New("there is already an item with this name")
)

// Item state errors guard the plaintext/ciphertext transition.
var (
	// ErrAlreadyEncrypted is returned when encrypting an item that holds ciphertext.
	ErrAlreadyEncrypted = errors.New("item is already encrypted")

	// ErrNotEncrypted is returned when decrypting an item that holds plaintext.
	ErrNotEncrypted = errors.New("item is not encrypted")

	// ErrMalformedCiphertext indicates a sensitive field is not valid base64.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrUnknownKind is returned for an item kind outside the known variants.
	ErrUnknownKind = errors.New("unknown item kind")
)

// NameError reports an invalid item name.
type NameError struct {
	// Kind is the variant the name was checked against.
	Kind Kind
	// Name is the normalised name that failed.
	Name string
	// Err is ErrEmptyName or ErrDuplicateName.
	Err error
}

func (e *NameError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s name: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s name %q: %v", e.Kind, e.Name, e.Err)
}

func (e *NameError) Unwrap() error { return e.Err }

// CryptoError reports a failed field transition. It is fatal to the single
// item operation only.
type CryptoError struct {
	// Op is "encrypt" or "decrypt".
	Op string
	// Field names the sensitive field that failed.
	Field string
	// Err is the underlying cipher error.
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Field, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }
