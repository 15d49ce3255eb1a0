package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPlaintext is returned when an item in plaintext state is about to be
// persisted.
var ErrPlaintext = errors.New("item is not encrypted")

// Record is the kind-tagged persisted form of an item, as the document store
// sees it.
type Record struct {
	// ID is the item identity.
	ID string `json:"id"`
	// Kind is the item variant.
	Kind Kind `json:"kind"`
	// Name is duplicated from the item so the store can enforce uniqueness.
	Name string `json:"name"`
	// Data is the JSON encoding of the sealed item.
	Data json.RawMessage `json:"data"`
	// Version is the unix time of the last write.
	Version int64 `json:"version"`
	// Deleted marks a soft-deleted record.
	Deleted bool `json:"deleted,omitempty"`
}

// ToRecord encodes a sealed item. Plaintext items are refused.
func ToRecord(item Item) (Record, error) {
	h := item.Header()
	if !h.Encrypted {
		return Record{}, fmt.Errorf("%s %q: %w", item.Kind(), h.Name, ErrPlaintext)
	}
	data, err := json.Marshal(item)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s %q: %w", item.Kind(), h.Name, err)
	}
	return Record{
		ID:      h.ID,
		Kind:    item.Kind(),
		Name:    h.Name,
		Data:    data,
		Version: h.Version,
	}, nil
}

// Item decodes the record back into its variant. The record's ID, Name and
// Version win over whatever the payload carries.
func (r Record) Item() (Item, error) {
	item, err := New(r.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(r.Data, item); err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", r.Kind, r.Name, err)
	}
	h := item.Header()
	h.ID, h.Name, h.Version = r.ID, r.Name, r.Version
	return item, nil
}

// VaultDocument is the wire form of a whole vault.
type VaultDocument struct {
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Passwords []*PasswordItem   `json:"passwords"`
	Notes     []*NoteItem       `json:"notes"`
	History   []string          `json:"history"`
}

// Document snapshots v into its wire form.
func (v *Vault) Document() VaultDocument {
	doc := VaultDocument{
		Name:      v.Name(),
		Metadata:  v.Metadata(),
		Passwords: v.Passwords(),
		Notes:     v.Notes(),
		History:   v.History(),
	}
	if doc.History == nil {
		doc.History = []string{}
	}
	return doc
}

// Vault builds a Vault from the document without notifying anyone.
func (d VaultDocument) Vault() *Vault {
	v := NewVault(d.Name, d.Metadata)
	for _, p := range d.Passwords {
		v.items[KindPassword] = append(v.items[KindPassword], p)
	}
	for _, n := range d.Notes {
		v.items[KindNote] = append(v.items[KindNote], n)
	}
	v.history = append(v.history, d.History...)
	return v
}
