package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/darusc/Passknight/internal/middleware"
	"github.com/darusc/Passknight/internal/models"
	"github.com/darusc/Passknight/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// VaultService defines the vault operations required by the VaultHandler.
type VaultService interface {
	Vault(ctx context.Context, owner string) (models.VaultDocument, error)
	AddItem(ctx context.Context, owner string, rec models.Record) error
	EditItem(ctx context.Context, owner, id string, req models.EditRequest) error
	DeleteItem(ctx context.Context, owner, id string) error
	UpdateHistory(ctx context.Context, owner string, history []string) error
}

// VaultHandler serves the vault document of the authenticated owner.
type VaultHandler struct {
	VaultService VaultService
	Log          *zap.Logger
}

// GetVault handles GET /api/vault.
func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	doc, err := h.VaultService.Vault(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// AddItem handles POST /api/items.
func (h *VaultHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.VaultService.AddItem(r.Context(), middleware.OwnerFromContext(r.Context()), rec); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// EditItem handles PUT /api/items/{id}.
func (h *VaultHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	var req models.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	owner := middleware.OwnerFromContext(r.Context())
	if err := h.VaultService.EditItem(r.Context(), owner, chi.URLParam(r, "id"), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteItem handles DELETE /api/items/{id}.
func (h *VaultHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	if err := h.VaultService.DeleteItem(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateHistory handles PUT /api/history.
func (h *VaultHandler) UpdateHistory(w http.ResponseWriter, r *http.Request) {
	var req models.HistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.History == nil {
		req.History = []string{}
	}
	if err := h.VaultService.UpdateHistory(r.Context(), middleware.OwnerFromContext(r.Context()), req.History); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VaultHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, service.ErrConflict):
		http.Error(w, "an item with this name already exists", http.StatusConflict)
	case errors.Is(err, models.ErrPlaintext):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log := h.Log
		if log == nil {
			log = zap.NewNop()
		}
		log.Error("vault request failed",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.String("owner", middleware.OwnerFromContext(r.Context())),
			zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
