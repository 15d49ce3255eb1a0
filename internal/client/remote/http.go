package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/darusc/Passknight/internal/models"
	"go.uber.org/zap"
)

const (
	apiVault   = "/api/vault"
	apiItems   = "/api/items"
	apiHistory = "/api/history"
)

// HTTPStore implements Store against the Passknight server API.
type HTTPStore struct {
	client    *http.Client
	baseURL   string
	log       *zap.Logger
	signedOut atomic.Bool
}

// NewHTTPStore returns a store using client, usually built by
// LoadClientCertificate, for the server at baseURL.
func NewHTTPStore(client *http.Client, baseURL string, log *zap.Logger) *HTTPStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPStore{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// FetchVault implements Store.
func (s *HTTPStore) FetchVault(ctx context.Context) (*models.Vault, error) {
	var doc models.VaultDocument
	if err := s.do(ctx, "fetch vault", http.MethodGet, apiVault, nil, &doc); err != nil {
		return nil, err
	}
	return doc.Vault(), nil
}

// AddItem implements Store.
func (s *HTTPStore) AddItem(ctx context.Context, item models.Item) error {
	rec, err := models.ToRecord(item)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	return s.do(ctx, "add item", http.MethodPost, apiItems, rec, nil)
}

// EditItem implements Store.
func (s *HTTPStore) EditItem(ctx context.Context, original, item models.Item) error {
	orig, err := models.ToRecord(original)
	if err != nil {
		return fmt.Errorf("edit item: %w", err)
	}
	rec, err := models.ToRecord(item)
	if err != nil {
		return fmt.Errorf("edit item: %w", err)
	}
	body := models.EditRequest{Original: orig, Item: rec}
	return s.do(ctx, "edit item", http.MethodPut, itemPath(orig.ID), body, nil)
}

// DeleteItem implements Store.
func (s *HTTPStore) DeleteItem(ctx context.Context, item models.Item) error {
	return s.do(ctx, "delete item", http.MethodDelete, itemPath(item.Header().ID), nil, nil)
}

// UpdateHistory implements Store.
func (s *HTTPStore) UpdateHistory(ctx context.Context, history []string) error {
	return s.do(ctx, "update history", http.MethodPut, apiHistory, models.HistoryRequest{History: history}, nil)
}

// SignOut implements Store. The underlying connections are closed and every
// later call fails with ErrSignedOut.
func (s *HTTPStore) SignOut() {
	s.signedOut.Store(true)
	s.client.CloseIdleConnections()
	s.log.Info("signed out")
}

func itemPath(id string) string {
	return apiItems + "/" + url.PathEscape(id)
}

func (s *HTTPStore) do(ctx context.Context, op, method, path string, in, out any) error {
	if s.signedOut.Load() {
		return &RemoteError{Op: op, Kind: Unreachable, Err: ErrSignedOut}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("remote call failed", zap.String("op", op), zap.Error(err))
		return &RemoteError{Op: op, Kind: Unreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := statusError(op, resp)
		s.log.Warn("remote call rejected", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return rerr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RemoteError{Op: op, Kind: Unknown, Status: resp.StatusCode, Err: fmt.Errorf("invalid response: %w", err)}
		}
	}
	s.log.Debug("remote call ok", zap.String("op", op), zap.Int("status", resp.StatusCode))
	return nil
}

func statusError(op string, resp *http.Response) *RemoteError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	rerr := &RemoteError{Op: op, Kind: Rejected, Status: resp.StatusCode, Err: errors.New(msg)}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		rerr.Err = fmt.Errorf("%w: %s", ErrNotFound, msg)
	case resp.StatusCode == http.StatusConflict:
		rerr.Err = fmt.Errorf("%w: %s", ErrConflict, msg)
	case resp.StatusCode >= 500:
		rerr.Kind = Unknown
	}
	return rerr
}
