package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantLen int
		sets    []string
	}{
		{"defaults", DefaultOptions(), DefaultLength, []string{upper, lower, digits, symbols}},
		{"digits only", Options{Length: 6, Digits: true}, 6, []string{digits}},
		{"clamped low", Options{Length: 1, Upper: true, Lower: true}, MinLength, []string{upper, lower}},
		{"clamped high", Options{Length: 1000, Lower: true}, MaxLength, []string{lower}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, g.Length())

			for range 20 {
				pw, err := g.Next()
				require.NoError(t, err)
				assert.Len(t, pw, tt.wantLen)
				for _, set := range tt.sets {
					assert.True(t, strings.ContainsAny(pw, set), "%q lacks a character of %q", pw, set)
				}
				for _, r := range pw {
					assert.True(t, strings.ContainsRune(strings.Join(tt.sets, ""), r), "unexpected %q", r)
				}
			}
		})
	}
}

func TestNextVaries(t *testing.T) {
	g, err := New(DefaultOptions())
	require.NoError(t, err)

	seen := map[string]bool{}
	for range 50 {
		pw, err := g.Next()
		require.NoError(t, err)
		seen[pw] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestNoClasses(t *testing.T) {
	_, err := New(Options{Length: 10})
	assert.ErrorIs(t, err, ErrNoClasses)
}
