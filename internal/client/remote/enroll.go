package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/darusc/Passknight/internal/models"
)

const apiRegister = "/api/register"

// ErrInvalidCA is returned when the CA file holds no usable certificate.
var ErrInvalidCA = errors.New("failed to parse CA cert")

// Enrollment describes a registration of a new owner.
type Enrollment struct {
	BaseURL string
	Login   string
	Vault   string
	// CAFile is the PEM bundle used to verify the server.
	CAFile string
	// CertFile and KeyFile receive the issued credentials.
	CertFile string
	KeyFile  string
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, ErrInvalidCA
	}
	return pool, nil
}

// Register creates the owner and its vault on the server and saves the issued
// client certificate and key with owner-only permissions.
func Register(ctx context.Context, e Enrollment) error {
	pool, err := loadCAPool(e.CAFile)
	if err != nil {
		return err
	}
	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}},
		Timeout:   10 * time.Second,
	}
	defer client.CloseIdleConnections()

	b, err := json.Marshal(models.RegisterRequest{Login: e.Login, Vault: e.Vault})
	if err != nil {
		return fmt.Errorf("encode register request: %w", err)
	}
	url := strings.TrimRight(e.BaseURL, "/") + apiRegister
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &RemoteError{Op: "register", Kind: Unreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("register", resp)
	}

	var creds models.Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if creds.Cert == "" || creds.Key == "" {
		return errors.New("server returned empty credentials")
	}
	if err := writePrivate(e.CertFile, []byte(creds.Cert)); err != nil {
		return fmt.Errorf("failed to save %s: %w", e.CertFile, err)
	}
	if err := writePrivate(e.KeyFile, []byte(creds.Key)); err != nil {
		return fmt.Errorf("failed to save %s: %w", e.KeyFile, err)
	}
	return nil
}

func writePrivate(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadClientCertificate returns an HTTP client presenting the owner
// certificate and trusting only the given CA.
func LoadClientCertificate(certFile, keyFile, caFile string, timeout time.Duration) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert/key: %w", err)
	}
	pool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      pool,
			MinVersion:   tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// ReadKeyPEM returns the raw private key file, the source of the vault key.
func ReadKeyPEM(keyFile string) ([]byte, error) {
	b, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("read key: %s is empty", keyFile)
	}
	return b, nil
}
