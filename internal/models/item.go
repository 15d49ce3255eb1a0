// Package models defines the vault data model: the Password and Note item
// variants, the Vault aggregate that owns them, and the Record form exchanged
// with the document store.
package models

import (
	"encoding/base64"
	"fmt"
)

// Kind tags an Item variant.
type Kind string

const (
	// KindPassword identifies a PasswordItem.
	KindPassword Kind = "password"
	// KindNote identifies a NoteItem.
	KindNote Kind = "note"
)

// Kinds lists every item variant in display order.
var Kinds = []Kind{KindPassword, KindNote}

// Valid reports whether k names a known variant.
func (k Kind) Valid() bool {
	return k == KindPassword || k == KindNote
}

// Transform is a byte-level crypto capability applied to every sensitive
// field of an item.
type Transform func([]byte) ([]byte, error)

// Item is the capability set shared by every vault record variant.
// The concrete types are *PasswordItem and *NoteItem.
type Item interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Header returns the non-sensitive part of the item for in-place access.
	Header() *Meta
	// Encrypt replaces every sensitive field with its ciphertext.
	Encrypt(fn Transform) error
	// Decrypt restores every sensitive field to plaintext.
	Decrypt(fn Transform) error
	// Clear resets the item to its empty form-open state.
	Clear()
	// Clone returns a deep copy.
	Clone() Item
}

// Meta holds the fields of an item that are never encrypted.
type Meta struct {
	// ID is the stable identity of the item, assigned on create.
	ID string `json:"id"`
	// Name is unique among items of the same kind within a vault.
	Name string `json:"name"`
	// Encrypted is true while the sensitive fields hold ciphertext.
	Encrypted bool `json:"encrypted"`
	// Version is the unix time of the last confirmed write.
	Version int64 `json:"version"`
}

// Header returns m itself so embedding types satisfy Item.
func (m *Meta) Header() *Meta { return m }

// New returns an empty item of the given kind.
func New(kind Kind) (Item, error) {
	switch kind {
	case KindPassword:
		return &PasswordItem{}, nil
	case KindNote:
		return &NoteItem{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// sealFields encrypts every value and returns the base64 ciphertexts in the
// same order. Nothing is returned unless all fields succeeded.
func sealFields(fn Transform, names []string, values ...string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		ct, err := fn([]byte(v))
		if err != nil {
			return nil, &CryptoError{Op: "encrypt", Field: names[i], Err: err}
		}
		out[i] = base64.StdEncoding.EncodeToString(ct)
	}
	return out, nil
}

// openFields is the inverse of sealFields.
func openFields(fn Transform, names []string, values ...string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, &CryptoError{Op: "decrypt", Field: names[i], Err: fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)}
		}
		pt, err := fn(raw)
		if err != nil {
			return nil, &CryptoError{Op: "decrypt", Field: names[i], Err: err}
		}
		out[i] = string(pt)
	}
	return out, nil
}

// OpenField decrypts a single sensitive field value without touching the
// item holding it.
func OpenField(fn Transform, field, value string) (string, error) {
	opened, err := openFields(fn, []string{field}, value)
	if err != nil {
		return "", err
	}
	return opened[0], nil
}
