package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/darusc/Passknight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func sealed(item models.Item, id string) models.Item {
	h := item.Header()
	h.ID = id
	h.Encrypted = true
	h.Version = 42
	return item
}

func newTestStore(t *testing.T, h http.HandlerFunc) *HTTPStore {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewHTTPStore(ts.Client(), ts.URL+"/", nil)
}

func TestHTTPStore_FetchVault(t *testing.T) {
	doc := models.VaultDocument{
		Name:      "main",
		Passwords: []*models.PasswordItem{sealed(models.NewPassword("Email", "dQ==", "cA==", ""), "p1").(*models.PasswordItem)},
		Notes:     []*models.NoteItem{sealed(models.NewNote("Recovery", "bg=="), "n1").(*models.NoteItem)},
		History:   []string{"abc"},
	}
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/vault", r.URL.Path)
		_ = json.NewEncoder(w).Encode(doc)
	})

	v, err := store.FetchVault(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", v.Name())
	assert.Equal(t, 1, v.Len(models.KindPassword))
	assert.Equal(t, 1, v.Len(models.KindNote))
	assert.Equal(t, []string{"abc"}, v.History())

	got, ok := v.Find(models.KindPassword, "Email")
	require.True(t, ok)
	assert.True(t, got.Header().Encrypted)
	assert.Equal(t, "p1", got.Header().ID)
}

func TestHTTPStore_AddItem(t *testing.T) {
	var rec models.Record
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		w.WriteHeader(http.StatusCreated)
	})

	err := store.AddItem(context.Background(), sealed(models.NewPassword("Email", "dQ==", "cA==", ""), "p1"))
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID)
	assert.Equal(t, models.KindPassword, rec.Kind)
	assert.Equal(t, "Email", rec.Name)
}

func TestHTTPStore_AddItemRefusesPlaintext(t *testing.T) {
	called := false
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	err := store.AddItem(context.Background(), models.NewNote("n", "secret"))
	assert.ErrorIs(t, err, models.ErrPlaintext)
	assert.False(t, called)
}

func TestHTTPStore_EditItem(t *testing.T) {
	var body models.EditRequest
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/items/n1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})

	orig := sealed(models.NewNote("Old", "bw=="), "n1")
	next := sealed(models.NewNote("New", "bg=="), "n1")
	require.NoError(t, store.EditItem(context.Background(), orig, next))
	assert.Equal(t, "Old", body.Original.Name)
	assert.Equal(t, "New", body.Item.Name)
}

func TestHTTPStore_DeleteAndHistory(t *testing.T) {
	var paths []string
	var history models.HistoryRequest
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/api/history" {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&history))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, store.DeleteItem(ctx, sealed(models.NewNote("n", "bg=="), "n1")))
	require.NoError(t, store.UpdateHistory(ctx, []string{"a", "b"}))
	assert.Equal(t, []string{"DELETE /api/items/n1", "PUT /api/history"}, paths)
	assert.Equal(t, []string{"a", "b"}, history.History)
}

func TestHTTPStore_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
		target error
	}{
		{"not found", http.StatusNotFound, Rejected, ErrNotFound},
		{"conflict", http.StatusConflict, Rejected, ErrConflict},
		{"bad request", http.StatusBadRequest, Rejected, nil},
		{"server fault", http.StatusInternalServerError, Unknown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			err := store.DeleteItem(context.Background(), sealed(models.NewNote("n", "bg=="), "n1"))
			require.Error(t, err)

			var rerr *RemoteError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.status, rerr.Status)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Contains(t, err.Error(), "nope")
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestHTTPStore_Unreachable(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	store := NewHTTPStore(client, "https://vault.invalid", zap.New(core))

	err := store.UpdateHistory(context.Background(), []string{"x"})
	assert.Equal(t, Unreachable, KindOf(err))
	assert.Equal(t, 1, logs.FilterMessage("remote call failed").Len())
}

func TestHTTPStore_InvalidResponse(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("{not json")),
			Header:     make(http.Header),
		}, nil
	})}
	store := NewHTTPStore(client, "https://vault.invalid", nil)

	_, err := store.FetchVault(context.Background())
	assert.Equal(t, Unknown, KindOf(err))
}

func TestHTTPStore_SignOut(t *testing.T) {
	calls := 0
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})

	store.SignOut()
	err := store.UpdateHistory(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Zero(t, calls)
}
