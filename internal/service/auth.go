// Package service provides the business logic of the vault server,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/darusc/Passknight/internal/models"
)

// DefaultVaultName is used when a registration names no vault.
const DefaultVaultName = "main"

const maxLoginLen = 64

// OwnerRepository defines the persistence operations
// required by the authentication service.
type OwnerRepository interface {
	// OwnerExists returns true if an owner with the given login exists.
	OwnerExists(ctx context.Context, login string) (bool, error)
	// CreateOwner creates the owner and an empty vault named vaultName.
	// An existing login yields ErrConflict.
	CreateOwner(ctx context.Context, login, vaultName string, createdAt int64) error
}

// Service implements authentication operations by delegating
// to an OwnerRepository.
type Service struct {
	repo OwnerRepository
	now  func() time.Time
}

// NewAuthService constructs a new Service using the provided repository.
func NewAuthService(repo OwnerRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ValidateLogin checks that login can serve as a certificate common name.
func ValidateLogin(login string) error {
	switch {
	case login == "":
		return fmt.Errorf("%w: empty", ErrInvalidLogin)
	case len(login) > maxLoginLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidLogin, maxLoginLen)
	case models.StripWhitespace(login) != login:
		return fmt.Errorf("%w: contains whitespace", ErrInvalidLogin)
	case strings.ContainsAny(login, `/\,+="<>;#`):
		return fmt.Errorf("%w: contains a reserved character", ErrInvalidLogin)
	}
	return nil
}

// UserExists checks whether an owner with the specified login exists.
func (s *Service) UserExists(ctx context.Context, login string) (bool, error) {
	return s.repo.OwnerExists(ctx, login)
}

// RegisterUser creates the owner and its vault.
func (s *Service) RegisterUser(ctx context.Context, login, vaultName string) error {
	if err := ValidateLogin(login); err != nil {
		return err
	}
	vaultName = strings.TrimSpace(vaultName)
	if vaultName == "" {
		vaultName = DefaultVaultName
	}
	return s.repo.CreateOwner(ctx, login, vaultName, s.now().Unix())
}
