// Package session ties the vault, the mediator, the history debouncer, the
// generator and the clipboard together for one unlocked vault.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/darusc/Passknight/internal/client/clipboard"
	"github.com/darusc/Passknight/internal/client/crypto"
	"github.com/darusc/Passknight/internal/client/generator"
	"github.com/darusc/Passknight/internal/client/history"
	"github.com/darusc/Passknight/internal/client/mediator"
	"github.com/darusc/Passknight/internal/client/remote"
	"github.com/darusc/Passknight/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrItemNotFound is returned when no item of the kind has the name.
	ErrItemNotFound = errors.New("item not found")

	// ErrLocked is returned by every operation after Lock.
	ErrLocked = errors.New("vault is locked")

	// ErrNotPassword is returned when copying password fields from a note.
	ErrNotPassword = errors.New("item is not a password")
)

// lockFlushTimeout bounds the history write made while locking.
const lockFlushTimeout = 5 * time.Second

// Config holds the collaborators of a Session.
type Config struct {
	Store     remote.Store
	Cipher    crypto.Cipher
	Clipboard clipboard.Clipboard
	Generator generator.Options
	// HistoryDelay is the debouncer quiet period; zero means the default.
	HistoryDelay time.Duration
	Logger       *zap.Logger
	// OnState is told about every mediator state transition.
	OnState func(mediator.Op, mediator.State)
	// Notify receives user-facing messages about background work: a failed
	// vault fetch, a failed history write, a finished copy.
	Notify func(string)
}

// Session is an unlocked vault.
type Session struct {
	vault  *models.Vault
	store  remote.Store
	cipher crypto.Cipher
	clip   clipboard.Clipboard
	med    *mediator.Mediator
	hist   *history.Debouncer
	log    *zap.Logger
	notify func(string)

	mu     sync.Mutex
	gen    *generator.Generator
	locked bool
}

// New returns a Session over an empty vault. Call Load to fetch it.
func New(cfg Config) (*Session, error) {
	if cfg.Store == nil || cfg.Cipher == nil {
		return nil, errors.New("session: store and cipher are required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(string) {}
	}
	gen, err := generator.New(cfg.Generator)
	if err != nil {
		return nil, err
	}

	v := models.NewVault("", nil)
	s := &Session{
		vault:  v,
		store:  cfg.Store,
		cipher: cfg.Cipher,
		clip:   cfg.Clipboard,
		log:    log,
		notify: notify,
		gen:    gen,
	}
	s.med = mediator.New(v, cfg.Store, cfg.Cipher,
		mediator.WithLogger(log.Named("mediator")),
		mediator.WithStateObserver(cfg.OnState),
	)
	s.hist = history.New(v, cfg.Store,
		history.WithDelay(cfg.HistoryDelay),
		history.WithLogger(log.Named("history")),
		history.WithErrorHandler(func(err error) { notify(mediator.Message(err)) }),
	)
	return s, nil
}

// Vault returns the vault backing the session.
func (s *Session) Vault() *models.Vault { return s.vault }

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return ErrLocked
	}
	return nil
}

// Load fetches the vault from the remote store.
func (s *Session) Load(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	v, err := s.store.FetchVault(ctx)
	if err != nil {
		s.log.Error("fetch vault", zap.Error(err))
		s.notify(mediator.Message(err))
		return err
	}
	s.vault.Restore(v)
	s.log.Info("vault loaded",
		zap.String("vault", v.Name()),
		zap.Int("passwords", v.Len(models.KindPassword)),
		zap.Int("notes", v.Len(models.KindNote)),
	)
	return nil
}

func (s *Session) find(kind models.Kind, name string) (models.Item, error) {
	item, ok := s.vault.Find(kind, name)
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", kind, name, ErrItemNotFound)
	}
	return item, nil
}

// OpenNew starts a form for a new item.
func (s *Session) OpenNew(kind models.Kind) (*mediator.Draft, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.med.OpenNew(kind)
}

// OpenEdit starts a form editing the named item.
func (s *Session) OpenEdit(kind models.Kind, name string) (*mediator.Draft, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	item, err := s.find(kind, name)
	if err != nil {
		return nil, err
	}
	return s.med.OpenEdit(item)
}

// Cancel discards a form.
func (s *Session) Cancel(d *mediator.Draft) { s.med.Cancel(d) }

// Save creates or edits the item of the form.
func (s *Session) Save(ctx context.Context, d *mediator.Draft) (mediator.Outcome, error) {
	if err := s.checkOpen(); err != nil {
		return mediator.Outcome{}, err
	}
	return s.med.Save(ctx, d)
}

// Delete removes the named item.
func (s *Session) Delete(ctx context.Context, kind models.Kind, name string) (mediator.Outcome, error) {
	if err := s.checkOpen(); err != nil {
		return mediator.Outcome{}, err
	}
	item, err := s.find(kind, name)
	if err != nil {
		return mediator.Outcome{}, err
	}
	return s.med.Delete(ctx, item)
}

// Show returns a decrypted copy of the named item.
func (s *Session) Show(kind models.Kind, name string) (models.Item, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	item, err := s.find(kind, name)
	if err != nil {
		return nil, err
	}
	if item.Header().Encrypted {
		if err := item.Decrypt(s.cipher.Decrypt); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// SetGeneratorOptions replaces the generator settings.
func (s *Session) SetGeneratorOptions(opts generator.Options) error {
	gen, err := generator.New(opts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.gen = gen
	s.mu.Unlock()
	return nil
}

// Generate returns a new password and records it in the history.
func (s *Session) Generate() (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	pw, err := gen.Next()
	if err != nil {
		return "", err
	}
	s.hist.Push(pw)
	return pw, nil
}

// History returns the generator history.
func (s *Session) History() []string { return s.vault.History() }

// CopyUsername copies the username of the named password item.
func (s *Session) CopyUsername(name string) error {
	return s.copyField(name, "username", "Username", false)
}

// CopyPassword copies the password of the named password item and schedules
// its removal from the clipboard.
func (s *Session) CopyPassword(name string) error {
	return s.copyField(name, "password", "Password", true)
}

func (s *Session) copyField(name, field, label string, sensitive bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.clip == nil {
		return errors.New("clipboard is not available")
	}
	item, err := s.find(models.KindPassword, name)
	if err != nil {
		return err
	}
	p, ok := item.(*models.PasswordItem)
	if !ok {
		return ErrNotPassword
	}

	value := p.Username
	if sensitive {
		value = p.Password
	}
	if p.Encrypted {
		value, err = models.OpenField(s.cipher.Decrypt, field, value)
		if err != nil {
			return err
		}
	}
	return s.clip.Copy(label, value, sensitive, func() {
		s.notify(label + " copied to clipboard")
	})
}

// Lock saves a history write still waiting for its quiet period, clears a
// sensitive clipboard value and signs out of the remote store. The session
// is unusable afterwards.
func (s *Session) Lock() {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return
	}
	s.locked = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), lockFlushTimeout)
	if err := s.hist.Flush(ctx); err != nil {
		s.notify(mediator.Message(err))
	}
	cancel()
	s.hist.Close()
	if c, ok := s.clip.(interface{ Clear() }); ok {
		c.Clear()
	}
	s.store.SignOut()
	s.vault.Restore(models.NewVault("", nil))
	s.log.Info("vault locked")
}
