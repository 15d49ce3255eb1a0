// Package generator produces random passwords.
package generator

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	MinLength     = 4
	MaxLength     = 128
	DefaultLength = 16
)

const (
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower   = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
	symbols = "!@#$%^&*()-_=+[]{};:,.<>?/~"
)

// ErrNoClasses is returned when every character class is disabled.
var ErrNoClasses = errors.New("at least one character class must be enabled")

// Options selects the length and the character classes of generated
// passwords.
type Options struct {
	Length  int
	Upper   bool
	Lower   bool
	Digits  bool
	Symbols bool
}

// DefaultOptions enables every class at DefaultLength.
func DefaultOptions() Options {
	return Options{Length: DefaultLength, Upper: true, Lower: true, Digits: true, Symbols: true}
}

// Generator produces passwords with a fixed set of options.
type Generator struct {
	length  int
	classes []string
}

// New returns a Generator. Length is clamped to [MinLength, MaxLength].
func New(opts Options) (*Generator, error) {
	var classes []string
	if opts.Upper {
		classes = append(classes, upper)
	}
	if opts.Lower {
		classes = append(classes, lower)
	}
	if opts.Digits {
		classes = append(classes, digits)
	}
	if opts.Symbols {
		classes = append(classes, symbols)
	}
	if len(classes) == 0 {
		return nil, ErrNoClasses
	}

	length := min(max(opts.Length, MinLength), MaxLength)
	return &Generator{length: length, classes: classes}, nil
}

// Length returns the effective password length.
func (g *Generator) Length() int { return g.length }

// Next returns a new password holding at least one character of every
// enabled class.
func (g *Generator) Next() (string, error) {
	all := strings.Join(g.classes, "")
	out := make([]byte, 0, g.length)

	for _, class := range g.classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < g.length {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// shuffle so the guaranteed characters are not always first
	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
