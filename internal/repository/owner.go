package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// OwnerRepository stores vault owners, identified by the common name of
// their client certificate.
type OwnerRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewOwnerRepository creates a new OwnerRepository with the given database
// connection.
func NewOwnerRepository(db *sql.DB) *OwnerRepository {
	return &OwnerRepository{DB: db}
}

// OwnerExists checks whether an owner with the specified login exists.
func (r *OwnerRepository) OwnerExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM owners WHERE login = $1)`,
		login,
	).Scan(&exists)
	return exists, err
}

// CreateOwner inserts the owner and its empty vault in one transaction. An
// existing login yields ErrConflict.
func (r *OwnerRepository) CreateOwner(ctx context.Context, login, vaultName string, createdAt int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO owners (login) VALUES ($1)`, login); err != nil {
		return fmt.Errorf("insert owner: %w", mapError(err))
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vaults (owner, name, metadata, history, created_at)
		VALUES ($1, $2, '{}', '[]', $3)
	`, login, vaultName, createdAt); err != nil {
		return fmt.Errorf("insert vault: %w", mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
