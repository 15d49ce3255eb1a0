package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/darusc/Passknight/internal/certgen"
	"github.com/darusc/Passknight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pki struct {
	dir    string
	ca     *certgen.Issuer
	caFile string
}

func newPKI(t *testing.T) *pki {
	t.Helper()
	dir := t.TempDir()
	ca, err := certgen.NewCA("Test CA", time.Hour)
	require.NoError(t, err)
	caFile := filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(caFile, ca.CertPEM(), 0o600))
	return &pki{dir: dir, ca: ca, caFile: caFile}
}

// startTLS serves h over TLS with a certificate for 127.0.0.1, verifying
// client certificates when given.
func (p *pki) startTLS(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	certPEM, keyPEM, err := p.ca.IssueServer([]string{"127.0.0.1"})
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(p.ca.Cert)

	ts := httptest.NewUnstartedServer(h)
	ts.TLS = &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    pool,
	}
	ts.StartTLS()
	t.Cleanup(ts.Close)
	return ts
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out)
	root.SetArgs(append(args, "-c", ""))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Build version: N/A")
}

func TestRegisterCommand(t *testing.T) {
	p := newPKI(t)
	var got models.RegisterRequest
	ts := p.startTLS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		certPEM, keyPEM, err := p.ca.Issue(got.Login)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Credentials{Cert: string(certPEM), Key: string(keyPEM)})
	}))

	certFile := filepath.Join(p.dir, "me", "client.crt")
	keyFile := filepath.Join(p.dir, "me", "client.key")
	out, err := run(t, "", "register", "alice", "--vault", "work",
		"--url", ts.URL, "--ca", p.caFile, "--cert", certFile, "--key", keyFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered alice")
	assert.Equal(t, models.RegisterRequest{Login: "alice", Vault: "work"}, got)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRegisterCommand_Errors(t *testing.T) {
	_, err := run(t, "", "register")
	assert.Error(t, err)

	_, err = run(t, "", "register", "alice", "--url", "http://localhost:8080")
	assert.ErrorContains(t, err, "https")
}

func TestShellCommand(t *testing.T) {
	p := newPKI(t)
	ts := p.startTLS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "alice", r.TLS.PeerCertificates[0].Subject.CommonName)
		_ = json.NewEncoder(w).Encode(models.VaultDocument{
			Name:      "main",
			Passwords: []*models.PasswordItem{},
			Notes:     []*models.NoteItem{},
			History:   []string{},
		})
	}))

	certPEM, keyPEM, err := p.ca.Issue("alice")
	require.NoError(t, err)
	certFile := filepath.Join(p.dir, "client.crt")
	keyFile := filepath.Join(p.dir, "client.key")
	require.NoError(t, certgen.WritePair(certFile, keyFile, certPEM, keyPEM))

	out, err := run(t, "list\nexit\n", "shell",
		"--url", ts.URL, "--ca", p.caFile, "--cert", certFile, "--key", keyFile, "--log-level", "error",
		"--prompt", "alice> ")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "alice> "))
	assert.Contains(t, out, `Vault "main" unlocked`)
	assert.Contains(t, out, "passwords (0)")
	assert.Contains(t, out, "Bye")
}

func TestShellCommand_MissingCertificate(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "", "shell", "--cert", filepath.Join(dir, "none.crt"), "--key", filepath.Join(dir, "none.key"))
	assert.ErrorContains(t, err, "client cert/key")
}
