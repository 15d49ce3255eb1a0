// Package mediator applies vault changes with a mutate-after-remote-success
// rule: the Vault is touched only once the remote store acknowledged the
// change, and a failed change leaves the Vault exactly as it was.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/darusc/Passknight/internal/client/crypto"
	"github.com/darusc/Passknight/internal/client/remote"
	"github.com/darusc/Passknight/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrOperationPending is returned when another create, edit or delete of the
// same item is still waiting for the remote store.
var ErrOperationPending = errors.New("another change to this item is still in progress")

// Op names a mediated operation.
type Op int

const (
	OpCreate Op = iota + 1
	OpEdit
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpEdit:
		return "edit"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// State is a step of a mediated operation.
type State int

const (
	Idle State = iota
	Validating
	Encrypting
	RemotePending
	Committed
	RolledBack
)

var stateNames = [...]string{"idle", "validating", "encrypting", "remote-pending", "committed", "rolled-back"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Outcome is the result of a mediated operation.
type Outcome struct {
	Op    Op
	State State
	// Navigate is true when the caller should leave the item form.
	Navigate bool
	// Item is the sealed item as committed, nil unless State is Committed.
	Item models.Item
}

// Draft is an open item form. Working always holds plaintext.
type Draft struct {
	Kind models.Kind
	// Working is the copy the user edits.
	Working models.Item
	// Original is the sealed item being edited, nil for a new item.
	Original models.Item
}

// IsEdit reports whether the draft edits an existing item.
func (d *Draft) IsEdit() bool { return d.Original != nil }

// Option configures a Mediator.
type Option func(*Mediator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mediator) {
		if l != nil {
			m.log = l
		}
	}
}

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(Op, State)) Option {
	return func(m *Mediator) { m.observe = fn }
}

// WithClock overrides the time source used for item versions.
func WithClock(now func() time.Time) Option {
	return func(m *Mediator) { m.now = now }
}

// WithIDGenerator overrides the generator of new item IDs.
func WithIDGenerator(fn func() string) Option {
	return func(m *Mediator) { m.newID = fn }
}

type itemKey struct {
	kind models.Kind
	name string
}

// Mediator coordinates validation, encryption, the remote store and the
// Vault for item changes. It is safe for concurrent use.
type Mediator struct {
	vault   *models.Vault
	store   remote.Store
	cipher  crypto.Cipher
	log     *zap.Logger
	observe func(Op, State)
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	inflight map[itemKey]struct{}
}

// New returns a Mediator changing v through store, sealing items with c.
func New(v *models.Vault, store remote.Store, c crypto.Cipher, opts ...Option) *Mediator {
	m := &Mediator{
		vault:    v,
		store:    store,
		cipher:   c,
		log:      zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
		inflight: make(map[itemKey]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mediator) transition(op Op, s State) {
	if m.observe != nil {
		m.observe(op, s)
	}
}

// acquire marks the keys as in flight, or fails if any of them already is.
func (m *Mediator) acquire(keys ...itemKey) (release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, busy := m.inflight[k]; busy {
			return nil, ErrOperationPending
		}
	}
	for _, k := range keys {
		m.inflight[k] = struct{}{}
	}
	return func() {
		m.mu.Lock()
		for _, k := range keys {
			delete(m.inflight, k)
		}
		m.mu.Unlock()
	}, nil
}

// OpenNew returns a draft for a new item of the given kind.
func (m *Mediator) OpenNew(kind models.Kind) (*Draft, error) {
	item, err := models.New(kind)
	if err != nil {
		return nil, err
	}
	return &Draft{Kind: kind, Working: item}, nil
}

// OpenEdit returns a draft whose working copy is a decrypted clone of
// original. original itself is not modified.
func (m *Mediator) OpenEdit(original models.Item) (*Draft, error) {
	working := original.Clone()
	if working.Header().Encrypted {
		if err := working.Decrypt(m.cipher.Decrypt); err != nil {
			return nil, err
		}
	}
	return &Draft{Kind: original.Kind(), Working: working, Original: original.Clone()}, nil
}

// Cancel discards the draft, wiping its plaintext.
func (m *Mediator) Cancel(d *Draft) {
	if d == nil || d.Working == nil {
		return
	}
	d.Working.Clear()
	d.Working = nil
}

// Create validates the draft, sends a sealed copy to the remote store and
// appends it to the Vault once the store accepted it. On a remote failure the
// working copy is cleared and the Vault is unchanged.
func (m *Mediator) Create(ctx context.Context, d *Draft) (Outcome, error) {
	out := Outcome{Op: OpCreate, State: Idle}
	if d == nil || d.Working == nil || d.IsEdit() {
		return out, errors.New("create: draft is not a new item")
	}

	m.transition(OpCreate, Validating)
	// held across validation: the duplicate check and the add are atomic per name
	name := models.StripWhitespace(d.Working.Header().Name)
	release, err := m.acquire(itemKey{d.Kind, name})
	if err != nil {
		m.transition(OpCreate, Idle)
		return out, err
	}
	defer release()

	if err := models.ValidateName(m.vault, d.Working, nil); err != nil {
		m.transition(OpCreate, Idle)
		return out, err
	}

	m.transition(OpCreate, Encrypting)
	sealed, err := m.seal(d.Working, m.newID())
	if err != nil {
		return m.rollback(out, err)
	}

	m.transition(OpCreate, RemotePending)
	if err := m.store.AddItem(ctx, sealed); err != nil {
		d.Working.Clear()
		m.log.Warn("create rolled back", zap.String("kind", string(d.Kind)), zap.String("item", name), zap.Error(err))
		return m.rollback(out, err)
	}

	m.vault.Add(sealed)
	d.Working.Clear()
	m.log.Info("item created", zap.String("kind", string(d.Kind)), zap.String("item", name))
	return m.commit(out, sealed.Clone()), nil
}

// Edit validates the draft against every item but the original, sends the
// sealed replacement to the remote store and swaps it into the Vault once the
// store accepted it. On failure the Vault and the original are untouched and
// the working copy stays in plaintext for a retry.
func (m *Mediator) Edit(ctx context.Context, d *Draft) (Outcome, error) {
	out := Outcome{Op: OpEdit, State: Idle}
	if d == nil || d.Working == nil || !d.IsEdit() {
		return out, errors.New("edit: draft has no original item")
	}

	m.transition(OpEdit, Validating)
	origName := d.Original.Header().Name
	name := models.StripWhitespace(d.Working.Header().Name)
	release, err := m.acquire(itemKey{d.Kind, origName}, itemKey{d.Kind, name})
	if err != nil {
		m.transition(OpEdit, Idle)
		return out, err
	}
	defer release()

	if err := models.ValidateName(m.vault, d.Working, d.Original); err != nil {
		m.transition(OpEdit, Idle)
		return out, err
	}

	id := d.Original.Header().ID
	if id == "" {
		id = m.newID()
	}

	m.transition(OpEdit, Encrypting)
	sealed, err := m.seal(d.Working, id)
	if err != nil {
		return m.rollback(out, err)
	}

	m.transition(OpEdit, RemotePending)
	if err := m.store.EditItem(ctx, d.Original, sealed); err != nil {
		m.log.Warn("edit rolled back", zap.String("kind", string(d.Kind)), zap.String("item", origName), zap.Error(err))
		return m.rollback(out, err)
	}

	if !m.vault.Replace(origName, sealed) {
		m.log.Warn("edited item missing locally, appending", zap.String("item", origName))
		m.vault.Add(sealed)
	}
	d.Working.Clear()
	m.log.Info("item edited", zap.String("kind", string(d.Kind)), zap.String("item", name))
	return m.commit(out, sealed.Clone()), nil
}

// Save creates or edits depending on the draft.
func (m *Mediator) Save(ctx context.Context, d *Draft) (Outcome, error) {
	if d != nil && d.IsEdit() {
		return m.Edit(ctx, d)
	}
	return m.Create(ctx, d)
}

// Delete removes item remotely and then from the Vault. On failure the Vault
// is untouched.
func (m *Mediator) Delete(ctx context.Context, item models.Item) (Outcome, error) {
	out := Outcome{Op: OpDelete, State: Idle}
	name := item.Header().Name

	release, err := m.acquire(itemKey{item.Kind(), name})
	if err != nil {
		return out, err
	}
	defer release()

	m.transition(OpDelete, RemotePending)
	if err := m.store.DeleteItem(ctx, item); err != nil {
		m.log.Warn("delete rolled back", zap.String("kind", string(item.Kind())), zap.String("item", name), zap.Error(err))
		return m.rollback(out, err)
	}

	m.vault.Remove(item)
	m.log.Info("item deleted", zap.String("kind", string(item.Kind())), zap.String("item", name))
	return m.commit(out, item.Clone()), nil
}

// seal returns an encrypted clone of working, leaving working in plaintext.
func (m *Mediator) seal(working models.Item, id string) (models.Item, error) {
	sealed := working.Clone()
	h := sealed.Header()
	h.ID = id
	h.Version = m.now().Unix()
	if err := sealed.Encrypt(m.cipher.Encrypt); err != nil {
		return nil, fmt.Errorf("seal %s %q: %w", sealed.Kind(), h.Name, err)
	}
	return sealed, nil
}

func (m *Mediator) commit(out Outcome, item models.Item) Outcome {
	out.State = Committed
	out.Navigate = true
	out.Item = item
	m.transition(out.Op, Committed)
	return out
}

func (m *Mediator) rollback(out Outcome, err error) (Outcome, error) {
	out.State = RolledBack
	m.transition(out.Op, RolledBack)
	return out, err
}
