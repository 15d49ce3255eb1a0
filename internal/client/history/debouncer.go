// Package history records generated passwords in the vault history and
// writes the history to the remote store once the user stops generating.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/darusc/Passknight/internal/models"
	"go.uber.org/zap"
)

// DefaultDelay is the quiet period after the last value before the history
// is written.
const DefaultDelay = 1500 * time.Millisecond

// Store persists the full generator history.
type Store interface {
	UpdateHistory(ctx context.Context, history []string) error
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithDelay sets the quiet period. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(db *Debouncer) {
		if l != nil {
			db.log = l
		}
	}
}

// WithErrorHandler registers fn to be told about failed writes.
func WithErrorHandler(fn func(error)) Option {
	return func(db *Debouncer) { db.onError = fn }
}

// Debouncer coalesces bursts of generated values into a single history
// write. Values reach the vault immediately; the store sees only the history
// as it was after the last value of a burst.
type Debouncer struct {
	vault   *models.Vault
	store   Store
	delay   time.Duration
	log     *zap.Logger
	onError func(error)

	mu        sync.Mutex
	gen       uint64
	timer     *time.Timer
	cancel    context.CancelFunc
	cancelGen uint64
	pending   bool
	closed    bool

	// writeMu keeps at most one write in flight.
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New returns a Debouncer appending to v and writing through store.
func New(v *models.Vault, store Store, opts ...Option) *Debouncer {
	d := &Debouncer{
		vault: v,
		store: store,
		delay: DefaultDelay,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Push records value and restarts the quiet period, cancelling any pending
// or in-flight write. Empty values are ignored.
func (d *Debouncer) Push(value string) {
	if value == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.vault.AppendHistory(value)

	d.gen++
	d.pending = true
	g := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(g) })
}

func (d *Debouncer) fire(g uint64) {
	d.mu.Lock()
	if d.closed || g != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel, d.cancelGen = cancel, g
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	defer cancel()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	history := d.vault.History()
	err := d.store.UpdateHistory(ctx, history)

	d.mu.Lock()
	if d.cancelGen == g {
		d.cancel = nil
	}
	d.mu.Unlock()

	switch {
	case err == nil:
		d.log.Debug("history written", zap.Int("entries", len(history)))
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		d.log.Debug("history write superseded")
	default:
		d.log.Warn("history write failed", zap.Int("entries", len(history)), zap.Error(err))
		if d.onError != nil {
			d.onError(err)
		}
	}
}

// Flush writes a history still waiting for its quiet period right away and
// returns the store error. Without one it waits for an in-flight write.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.closed || !d.pending {
		d.mu.Unlock()
		d.wg.Wait()
		return nil
	}
	d.pending = false
	d.gen++
	d.timer.Stop()
	d.mu.Unlock()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	history := d.vault.History()
	if err := d.store.UpdateHistory(ctx, history); err != nil {
		d.log.Warn("history flush failed", zap.Int("entries", len(history)), zap.Error(err))
		return err
	}
	d.log.Debug("history flushed", zap.Int("entries", len(history)))
	return nil
}

// Close cancels the pending and in-flight writes and waits for the in-flight
// one to return. Later pushes are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}
