package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/darusc/Passknight/internal/client/crypto"
	"github.com/darusc/Passknight/internal/client/generator"
	"github.com/darusc/Passknight/internal/client/mediator"
	"github.com/darusc/Passknight/internal/client/remote"
	"github.com/darusc/Passknight/internal/client/session"
	"github.com/darusc/Passknight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	added     []models.Item
	editErrs  []error
	signedOut bool
}

func (f *fakeStore) FetchVault(context.Context) (*models.Vault, error) {
	return models.NewVault("main", nil), nil
}

func (f *fakeStore) AddItem(_ context.Context, item models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, item.Clone())
	return nil
}

func (f *fakeStore) EditItem(context.Context, models.Item, models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.editErrs) > 0 {
		err := f.editErrs[0]
		f.editErrs = f.editErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStore) DeleteItem(context.Context, models.Item) error { return nil }

func (f *fakeStore) UpdateHistory(context.Context, []string) error { return nil }

func (f *fakeStore) SignOut() { f.signedOut = true }

type nopClipboard struct{ values []string }

func (c *nopClipboard) Copy(_, value string, _ bool, onDone func()) error {
	c.values = append(c.values, value)
	if onDone != nil {
		onDone()
	}
	return nil
}

func run(t *testing.T, store *fakeStore, clip *nopClipboard, input string) (string, *session.Session) {
	t.Helper()
	c, err := crypto.NewAESGCM(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)

	var out bytes.Buffer
	sh := New(strings.NewReader(input), &out)
	s, err := session.New(session.Config{
		Store:        store,
		Cipher:       c,
		Clipboard:    clip,
		Generator:    generator.DefaultOptions(),
		HistoryDelay: time.Hour,
		OnState:      sh.Observe,
		Notify:       sh.Notify,
	})
	require.NoError(t, err)

	require.NoError(t, sh.Run(context.Background(), s))
	return out.String(), s
}

func TestShell_AddListShowCopy(t *testing.T) {
	store := &fakeStore{}
	clip := &nopClipboard{}
	input := strings.Join([]string{
		"add-password", "Email", "u", "p", "https://mail.example",
		"add-note", "Recovery", "line one", "line two", ".",
		"list",
		"show password Email",
		"show note Recovery",
		"copy-user Email",
		"copy-pass Email",
		"exit",
	}, "\n") + "\n"

	out, _ := run(t, store, clip, input)

	assert.Contains(t, out, `Vault "main" unlocked`)
	assert.Contains(t, out, "Saved password Email")
	assert.Contains(t, out, "Saved note Recovery")
	assert.Contains(t, out, "passwords (1)")
	assert.Contains(t, out, "Username: u")
	assert.Contains(t, out, "Password: p")
	assert.Contains(t, out, "line one\nline two")
	assert.Contains(t, out, "Username copied to clipboard")
	assert.Contains(t, out, "Password copied to clipboard")
	assert.Contains(t, out, "Bye")

	assert.Equal(t, []string{"u", "p"}, clip.values)
	require.Len(t, store.added, 2)
	assert.True(t, store.added[0].Header().Encrypted)
	assert.True(t, store.signedOut)
}

func TestShell_DuplicateNameIsCorrected(t *testing.T) {
	store := &fakeStore{}
	input := strings.Join([]string{
		"add-note", "Todo", "a", ".",
		"add-note", "To do", "b", ".", "Todo2",
		"list note",
	}, "\n") + "\n"

	out, _ := run(t, store, &nopClipboard{}, input)

	assert.Contains(t, out, "There is already an item with this name")
	assert.Contains(t, out, "Saved note Todo2")
	assert.Contains(t, out, "notes (2)")
	require.Len(t, store.added, 2)
	assert.Equal(t, "Todo2", store.added[1].Header().Name)
}

func TestShell_EditRetry(t *testing.T) {
	store := &fakeStore{editErrs: []error{
		&remote.RemoteError{Op: "edit item", Kind: remote.Unreachable, Err: errors.New("down")},
	}}
	input := strings.Join([]string{
		"add-password", "Email", "u", "p", "",
		"edit password Email", "", "alice", "", "",
		"y",
		"show p Email",
	}, "\n") + "\n"

	out, _ := run(t, store, &nopClipboard{}, input)

	assert.Contains(t, out, "There was an error updating the item (the server could not be reached)")
	assert.Equal(t, 2, strings.Count(out, "Saved password Email"))
	assert.Contains(t, out, "Username: alice")
	assert.Contains(t, out, "Password: p")
}

func TestShell_GenerateAndHistory(t *testing.T) {
	input := "generate 8\ngenerate\nhistory\nadd-password\nBank\nb\n\n\n"

	out, s := run(t, &fakeStore{}, &nopClipboard{}, input)

	assert.Empty(t, s.History(), "history is cleared by lock")
	assert.Contains(t, out, "  1  ")
	assert.Contains(t, out, "  2  ")
	assert.Contains(t, out, "Generated password: ")
	assert.Contains(t, out, "Saved password Bank")
}

func TestShell_Errors(t *testing.T) {
	input := strings.Join([]string{
		"show password Missing",
		"show secret x",
		"delete note",
		"copy-pass",
		"bogus",
		"help",
	}, "\n") + "\n"

	out, _ := run(t, &fakeStore{}, &nopClipboard{}, input)

	assert.Contains(t, out, "Item not found")
	assert.Contains(t, out, `unknown item kind: "secret"`)
	assert.Contains(t, out, "usage: delete <password|note> <name>")
	assert.Contains(t, out, "usage: copy-pass <name>")
	assert.Contains(t, out, "Unknown command")
	assert.Contains(t, out, "Available commands:")
}

func TestShell_DeleteConfirm(t *testing.T) {
	input := strings.Join([]string{
		"add-note", "Todo", "a", ".",
		"delete note Todo", "n",
		"list note",
		"delete note Todo", "y",
	}, "\n") + "\n"

	out, _ := run(t, &fakeStore{}, &nopClipboard{}, input)

	assert.Contains(t, out, "notes (1)")
	assert.Contains(t, out, "Item deleted!")
	assert.Equal(t, 1, strings.Count(out, "Item deleted!"))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", session.ErrItemNotFound, "Item not found"},
		{"unreachable", &remote.RemoteError{Op: "add item", Kind: remote.Unreachable, Err: errors.New("dial")}, "There was an error adding the new item (the server could not be reached)"},
		{"rejected", &remote.RemoteError{Op: "add item", Kind: remote.Rejected, Status: 409, Err: remote.ErrConflict}, "There was an error adding the new item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.err))
		})
	}
}

func TestObserveWithoutTerminal(t *testing.T) {
	sh := New(strings.NewReader(""), &bytes.Buffer{})
	sh.Observe(mediator.OpCreate, mediator.RemotePending)
	sh.Observe(mediator.OpCreate, mediator.Committed)
	assert.Nil(t, sh.spin)
}
