// Package clipboard copies item fields to the system clipboard.
package clipboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
)

// Clipboard is the port used by the session to copy values.
type Clipboard interface {
	// Copy places value on the clipboard. label names the value for the
	// user; sensitive values are wiped later. onDone runs once the value is
	// on the clipboard.
	Copy(label, value string, sensitive bool, onDone func()) error
}

// System is a Clipboard backed by the operating system clipboard. A
// sensitive value is cleared after a delay unless something else was copied
// meanwhile.
type System struct {
	clearAfter time.Duration
	log        *zap.Logger
	write      func(string) error
	read       func() (string, error)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

// NewSystem returns a System clearing sensitive values after clearAfter.
// A zero clearAfter keeps them.
func NewSystem(clearAfter time.Duration, log *zap.Logger) *System {
	return newSystem(clearAfter, log, clipboard.WriteAll, clipboard.ReadAll)
}

func newSystem(clearAfter time.Duration, log *zap.Logger, write func(string) error, read func() (string, error)) *System {
	if log == nil {
		log = zap.NewNop()
	}
	return &System{clearAfter: clearAfter, log: log, write: write, read: read}
}

// Supported reports whether a clipboard utility is available.
func Supported() bool { return !clipboard.Unsupported }

// Copy implements Clipboard.
func (s *System) Copy(label, value string, sensitive bool, onDone func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(value); err != nil {
		return fmt.Errorf("copy %s: %w", label, err)
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = ""

	if sensitive && s.clearAfter > 0 {
		s.pending = value
		s.timer = time.AfterFunc(s.clearAfter, s.Clear)
	}
	s.log.Debug("copied to clipboard", zap.String("label", label), zap.Bool("sensitive", sensitive))
	if onDone != nil {
		onDone()
	}
	return nil
}

// Clear wipes the clipboard if it still holds the last sensitive value.
func (s *System) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending == "" {
		return
	}
	value := s.pending
	s.pending = ""

	cur, err := s.read()
	if err != nil {
		s.log.Warn("read clipboard", zap.Error(err))
		return
	}
	if cur != value {
		return
	}
	if err := s.write(""); err != nil {
		s.log.Warn("clear clipboard", zap.Error(err))
	}
}
