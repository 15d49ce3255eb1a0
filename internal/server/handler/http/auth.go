// Package http provides the HTTP handlers of the vault server: owner
// registration, certificate login and the vault document API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/darusc/Passknight/internal/models"
	"github.com/darusc/Passknight/internal/service"
	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// UserExists checks whether an owner with the given login exists.
	UserExists(ctx context.Context, login string) (bool, error)
	// RegisterUser creates the owner and its vault.
	RegisterUser(ctx context.Context, login, vaultName string) error
}

// Issuer issues client certificates signed by the server CA.
type Issuer interface {
	Issue(commonName string) (certPEM, keyPEM []byte, err error)
}

// AuthHandler handles HTTP requests for owner registration and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Issuer signs the certificates handed out on registration.
	Issuer Issuer
	Log    *zap.Logger
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// Register handles owner registration.
// It expects a JSON body with a valid "login" and an optional "vault" name.
// If the owner does not exist yet, it issues a client certificate signed by
// the CA, stores the owner with an empty vault, and returns the PEM-encoded
// certificate and private key.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := service.ValidateLogin(req.Login); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	exists, err := h.AuthService.UserExists(r.Context(), req.Login)
	if err != nil {
		h.logger().Error("user lookup failed", zap.String("login", req.Login), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if exists {
		http.Error(w, "user already exists", http.StatusConflict)
		return
	}

	certPEM, keyPEM, err := h.Issuer.Issue(req.Login)
	if err != nil {
		h.logger().Error("certificate issue failed", zap.String("login", req.Login), zap.Error(err))
		http.Error(w, "failed to generate certificate", http.StatusInternalServerError)
		return
	}

	if err := h.AuthService.RegisterUser(r.Context(), req.Login, req.Vault); err != nil {
		if errors.Is(err, service.ErrConflict) {
			http.Error(w, "user already exists", http.StatusConflict)
			return
		}
		h.logger().Error("register failed", zap.String("login", req.Login), zap.Error(err))
		http.Error(w, "failed to save user", http.StatusInternalServerError)
		return
	}
	h.logger().Info("owner registered", zap.String("login", req.Login))

	writeJSON(w, http.StatusCreated, models.Credentials{Cert: string(certPEM), Key: string(keyPEM)})
}

// Login handles certificate-based login requests.
// The CommonName of the client certificate is the login. If the owner
// exists, it returns a JSON status "ok" and the login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		http.Error(w, "client certificate required", http.StatusUnauthorized)
		return
	}
	login := r.TLS.PeerCertificates[0].Subject.CommonName

	exists, err := h.AuthService.UserExists(r.Context(), login)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "user not found", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"user":   login,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
