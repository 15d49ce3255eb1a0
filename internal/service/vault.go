package service

import (
	"context"
	"fmt"
	"time"

	"github.com/darusc/Passknight/internal/models"
	"github.com/darusc/Passknight/internal/repository"
	"go.uber.org/zap"
)

// VaultRepository defines the persistence operations needed by the
// VaultService.
type VaultRepository interface {
	GetVault(ctx context.Context, owner string) (*repository.VaultRow, error)
	ListItems(ctx context.Context, owner string) ([]models.Record, error)
	InsertItem(ctx context.Context, owner string, rec models.Record) error
	UpdateItem(ctx context.Context, owner string, rec models.Record) error
	SoftDeleteItem(ctx context.Context, owner, id string, version int64) error
	UpdateHistory(ctx context.Context, owner string, history []string) error
}

// VaultService stores sealed items on behalf of their owner. It never sees
// plaintext and refuses records that hold any.
type VaultService struct {
	repo VaultRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewVaultService constructs a VaultService with the provided repository.
func NewVaultService(repo VaultRepository, log *zap.Logger) *VaultService {
	if log == nil {
		log = zap.NewNop()
	}
	return &VaultService{repo: repo, log: log, now: time.Now}
}

// Vault returns the whole vault of owner.
func (s *VaultService) Vault(ctx context.Context, owner string) (models.VaultDocument, error) {
	row, err := s.repo.GetVault(ctx, owner)
	if err != nil {
		return models.VaultDocument{}, err
	}
	records, err := s.repo.ListItems(ctx, owner)
	if err != nil {
		return models.VaultDocument{}, err
	}

	vault := models.VaultDocument{
		Name:     row.Name,
		Metadata: row.Metadata,
		History:  row.History,
	}.Vault()
	for _, rec := range records {
		item, err := rec.Item()
		if err != nil {
			s.log.Error("skipping unreadable item", zap.String("owner", owner), zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		vault.Add(item)
	}
	return vault.Document(), nil
}

// checkRecord accepts only well-formed sealed items.
func checkRecord(rec models.Record) error {
	switch {
	case rec.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case !rec.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, rec.Kind)
	case rec.Name == "" || models.StripWhitespace(rec.Name) != rec.Name:
		return fmt.Errorf("%w: bad name %q", ErrInvalidRecord, rec.Name)
	}
	item, err := rec.Item()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if !item.Header().Encrypted {
		return fmt.Errorf("%s %q: %w", rec.Kind, rec.Name, models.ErrPlaintext)
	}
	return nil
}

// AddItem stores a new sealed item.
func (s *VaultService) AddItem(ctx context.Context, owner string, rec models.Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	if rec.Version == 0 {
		rec.Version = s.now().Unix()
	}
	if err := s.repo.InsertItem(ctx, owner, rec); err != nil {
		return err
	}
	s.log.Info("item added", zap.String("owner", owner), zap.String("kind", string(rec.Kind)), zap.String("id", rec.ID))
	return nil
}

// EditItem replaces the item id with req.Item.
func (s *VaultService) EditItem(ctx context.Context, owner, id string, req models.EditRequest) error {
	rec := req.Item
	if rec.ID == "" {
		rec.ID = id
	}
	switch {
	case rec.ID != id:
		return fmt.Errorf("%w: id %q does not match %q", ErrInvalidRecord, rec.ID, id)
	case req.Original.ID != "" && req.Original.ID != id:
		return fmt.Errorf("%w: original id %q does not match %q", ErrInvalidRecord, req.Original.ID, id)
	case req.Original.Kind != "" && req.Original.Kind != rec.Kind:
		return fmt.Errorf("%w: kind cannot change", ErrInvalidRecord)
	}
	if err := checkRecord(rec); err != nil {
		return err
	}
	if rec.Version == 0 {
		rec.Version = s.now().Unix()
	}
	if err := s.repo.UpdateItem(ctx, owner, rec); err != nil {
		return err
	}
	s.log.Info("item edited", zap.String("owner", owner), zap.String("kind", string(rec.Kind)), zap.String("id", id))
	return nil
}

// DeleteItem soft-deletes the item id.
func (s *VaultService) DeleteItem(ctx context.Context, owner, id string) error {
	if err := s.repo.SoftDeleteItem(ctx, owner, id, s.now().Unix()); err != nil {
		return err
	}
	s.log.Info("item deleted", zap.String("owner", owner), zap.String("id", id))
	return nil
}

// UpdateHistory overwrites the generator history of owner.
func (s *VaultService) UpdateHistory(ctx context.Context, owner string, history []string) error {
	return s.repo.UpdateHistory(ctx, owner, history)
}
