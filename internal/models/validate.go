package models

import (
	"strings"
	"unicode"
)

// StripWhitespace removes every whitespace rune from s.
func StripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ValidateName normalises the name of item in place and checks it against
// the items already in v. original is the item being edited, or nil on
// create; its own name does not count as a duplicate.
func ValidateName(v *Vault, item Item, original Item) error {
	h := item.Header()
	h.Name = StripWhitespace(h.Name)
	if h.Name == "" {
		return &NameError{Kind: item.Kind(), Err: ErrEmptyName}
	}

	exceptID := ""
	if original != nil {
		exceptID = original.Header().ID
	}
	if v.NameTaken(item.Kind(), h.Name, exceptID) {
		return &NameError{Kind: item.Kind(), Name: h.Name, Err: ErrDuplicateName}
	}
	return nil
}
