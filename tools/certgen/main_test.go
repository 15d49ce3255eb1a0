package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/darusc/Passknight/internal/certgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	var out bytes.Buffer

	require.NoError(t, run([]string{"--dir", dir, "--hosts", "vault.local,10.0.0.1", "--client", "alice"}, &out))
	assert.Contains(t, out.String(), "Certificates generated into "+dir)

	for _, name := range []string{"ca.crt", "ca.key", "server.crt", "server.key", "client.crt", "client.key"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	ca, err := certgen.LoadIssuer(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"))
	require.NoError(t, err)

	// The CA loaded back from disk can keep issuing.
	_, _, err = ca.Issue("bob")
	assert.NoError(t, err)
}

func TestRun_NoClient(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run([]string{"--dir", dir}, &bytes.Buffer{}))

	_, err := os.Stat(filepath.Join(dir, "client.crt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_BadFlag(t *testing.T) {
	assert.Error(t, run([]string{"--nope"}, &bytes.Buffer{}))
}
