package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/darusc/Passknight/internal/certgen"
	"github.com/darusc/Passknight/internal/client/crypto"
	"github.com/darusc/Passknight/internal/client/generator"
	"github.com/darusc/Passknight/internal/client/remote"
	"github.com/darusc/Passknight/internal/client/session"
	"github.com/darusc/Passknight/internal/config"
	"github.com/darusc/Passknight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeServerCerts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ca, err := certgen.NewCA("Test CA", time.Hour)
	require.NoError(t, err)
	caKey, err := ca.KeyPEM()
	require.NoError(t, err)
	require.NoError(t, certgen.WritePair(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"), ca.CertPEM(), caKey))

	certPEM, keyPEM, err := ca.IssueServer([]string{"localhost", "127.0.0.1"})
	require.NoError(t, err)
	require.NoError(t, certgen.WritePair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"), certPEM, keyPEM))
	return dir
}

func startServer(t *testing.T) (url, certDir string) {
	t.Helper()
	certDir = writeServerCerts(t)
	opts := config.DefaultServerOptions()
	opts.Driver = "sqlite3"
	opts.DatabaseDSN = filepath.Join(t.TempDir(), "vault.db")
	opts.CertDir = certDir

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server, closeDB, err := newServer(ctx, opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(closeDB)

	ts := httptest.NewUnstartedServer(server.Handler)
	ts.TLS = server.TLSConfig
	ts.StartTLS()
	t.Cleanup(ts.Close)
	return ts.URL, certDir
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Build version: N/A")
	assert.Contains(t, out.String(), "Build date: N/A")
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"serve", "--driver", "mysql", "--dsn", "x", "-c", ""})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestServerTLS_MissingFiles(t *testing.T) {
	_, err := serverTLS(t.TempDir())
	assert.ErrorContains(t, err, "server TLS cert/key")
}

func TestEndToEnd(t *testing.T) {
	url, certDir := startServer(t)
	ctx := context.Background()
	clientDir := t.TempDir()
	caFile := filepath.Join(certDir, "ca.crt")
	certFile := filepath.Join(clientDir, "client.crt")
	keyFile := filepath.Join(clientDir, "client.key")

	require.NoError(t, remote.Register(ctx, remote.Enrollment{
		BaseURL:  url,
		Login:    "alice",
		Vault:    "personal",
		CAFile:   caFile,
		CertFile: certFile,
		KeyFile:  keyFile,
	}))

	// A second registration of the same login is refused.
	err := remote.Register(ctx, remote.Enrollment{
		BaseURL:  url,
		Login:    "alice",
		CAFile:   caFile,
		CertFile: filepath.Join(clientDir, "again.crt"),
		KeyFile:  filepath.Join(clientDir, "again.key"),
	})
	require.Error(t, err)

	client, err := remote.LoadClientCertificate(certFile, keyFile, caFile, 5*time.Second)
	require.NoError(t, err)
	keyPEM, err := remote.ReadKeyPEM(keyFile)
	require.NoError(t, err)
	cipher, err := crypto.NewFromKeyPEM(crypto.AESGCM, keyPEM)
	require.NoError(t, err)

	store := remote.NewHTTPStore(client, url, nil)
	sess, err := session.New(session.Config{
		Store:        store,
		Cipher:       cipher,
		Generator:    generator.DefaultOptions(),
		HistoryDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, sess.Load(ctx))
	assert.Equal(t, "personal", sess.Vault().Name())

	d, err := sess.OpenNew(models.KindPassword)
	require.NoError(t, err)
	pw := d.Working.(*models.PasswordItem)
	pw.Name, pw.Username, pw.Password = "Email", "u", "p"
	_, err = sess.Save(ctx, d)
	require.NoError(t, err)

	d, err = sess.OpenNew(models.KindNote)
	require.NoError(t, err)
	note := d.Working.(*models.NoteItem)
	note.Name, note.Content = "Recovery", "codes"
	_, err = sess.Save(ctx, d)
	require.NoError(t, err)

	generated, err := sess.Generate()
	require.NoError(t, err)

	// The server only ever sees ciphertext.
	fetched, err := store.FetchVault(ctx)
	require.NoError(t, err)
	require.Len(t, fetched.Passwords(), 1)
	sealed := fetched.Passwords()[0]
	assert.True(t, sealed.Encrypted)
	assert.NotEqual(t, "p", sealed.Password)

	require.Eventually(t, func() bool {
		v, err := store.FetchVault(ctx)
		return err == nil && len(v.History()) == 1 && v.History()[0] == generated
	}, 2*time.Second, 20*time.Millisecond)

	d, err = sess.OpenEdit(models.KindPassword, "Email")
	require.NoError(t, err)
	d.Working.(*models.PasswordItem).Password = "p2"
	_, err = sess.Save(ctx, d)
	require.NoError(t, err)

	_, err = sess.Delete(ctx, models.KindNote, "Recovery")
	require.NoError(t, err)
	sess.Lock()

	// A fresh session sees the committed state.
	reopened, err := session.New(session.Config{Store: remote.NewHTTPStore(client, url, nil), Cipher: cipher, Generator: generator.DefaultOptions()})
	require.NoError(t, err)
	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, 0, reopened.Vault().Len(models.KindNote))
	item, err := reopened.Show(models.KindPassword, "Email")
	require.NoError(t, err)
	assert.Equal(t, "u", item.(*models.PasswordItem).Username)
	assert.Equal(t, "p2", item.(*models.PasswordItem).Password)
	assert.Equal(t, []string{generated}, reopened.History())
	reopened.Lock()
}
