package http

import (
	"net/http"

	"github.com/darusc/Passknight/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter constructs the HTTP handler of the vault API.
//
// Routes:
//
//	POST   /api/register    → authHandler.Register (no client certificate)
//	POST   /api/login       → authHandler.Login
//	GET    /api/vault       → vaultHandler.GetVault
//	POST   /api/items       → vaultHandler.AddItem
//	PUT    /api/items/{id}  → vaultHandler.EditItem
//	DELETE /api/items/{id}  → vaultHandler.DeleteItem
//	PUT    /api/history     → vaultHandler.UpdateHistory
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") rejects non-JSON bodies
//  2. WithRequestLogging(logger) logs every request
//  3. Recoverer turns handler panics into 500s
//  4. CertAuth enforces TLS client certificate auth
func NewRouter(
	authHandler *AuthHandler,
	vaultHandler *VaultHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CertAuth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.Get("/vault", vaultHandler.GetVault)
		r.Post("/items", vaultHandler.AddItem)
		r.Put("/items/{id}", vaultHandler.EditItem)
		r.Delete("/items/{id}", vaultHandler.DeleteItem)
		r.Put("/history", vaultHandler.UpdateHistory)
	})

	return r
}
