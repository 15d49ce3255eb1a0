package models

var noteFields = []string{"content"}

// NoteItem is a free-text secret note.
type NoteItem struct {
	Meta
	Content string `json:"content"`
}

// NewNote returns a plaintext note ready to be saved.
func NewNote(name, content string) *NoteItem {
	return &NoteItem{Meta: Meta{Name: name}, Content: content}
}

func (n *NoteItem) Kind() Kind { return KindNote }

func (n *NoteItem) Encrypt(fn Transform) error {
	if n.Encrypted {
		return ErrAlreadyEncrypted
	}
	sealed, err := sealFields(fn, noteFields, n.Content)
	if err != nil {
		return err
	}
	n.Content = sealed[0]
	n.Encrypted = true
	return nil
}

func (n *NoteItem) Decrypt(fn Transform) error {
	if !n.Encrypted {
		return ErrNotEncrypted
	}
	opened, err := openFields(fn, noteFields, n.Content)
	if err != nil {
		return err
	}
	n.Content = opened[0]
	n.Encrypted = false
	return nil
}

func (n *NoteItem) Clear() {
	*n = NoteItem{}
}

func (n *NoteItem) Clone() Item {
	c := *n
	return &c
}
