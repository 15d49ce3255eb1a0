package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/darusc/Passknight/internal/models"
)

// VaultRow is the vault-level part of a stored vault.
type VaultRow struct {
	Owner     string
	Name      string
	Metadata  map[string]string
	History   []string
	CreatedAt int64
}

// VaultRepository stores vaults and their sealed items. Items are never
// decrypted here; data holds the JSON of the sealed item.
type VaultRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
	// Now stamps the position of inserted items; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	lastSeq int64
}

// NewVaultRepository creates a new VaultRepository using the provided *sql.DB.
func NewVaultRepository(db *sql.DB) *VaultRepository {
	return &VaultRepository{DB: db}
}

// GetVault returns the vault of owner or ErrNotFound.
func (r *VaultRepository) GetVault(ctx context.Context, owner string) (*VaultRow, error) {
	var (
		row               = VaultRow{Owner: owner}
		metadata, history string
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT name, metadata, history, created_at FROM vaults WHERE owner = $1
	`, owner).Scan(&row.Name, &metadata, &history, &row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get vault: %w", mapError(err))
	}

	if err := json.Unmarshal([]byte(metadata), &row.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &row.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &row, nil
}

// nextSeq returns a strictly increasing insertion stamp.
func (r *VaultRepository) nextSeq() int64 {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := now().UnixNano()
	if seq <= r.lastSeq {
		seq = r.lastSeq + 1
	}
	r.lastSeq = seq
	return seq
}

// ListItems returns the live items of owner in insertion order.
func (r *VaultRepository) ListItems(ctx context.Context, owner string) ([]models.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, kind, name, data, version FROM items
		WHERE owner = $1 AND deleted = false
		ORDER BY seq
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			rec  models.Record
			data string
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Name, &data, &rec.Version); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec.Data = json.RawMessage(data)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertItem stores a new item. A live item of the same kind and name, or a
// reused ID, yields ErrConflict.
func (r *VaultRepository) InsertItem(ctx context.Context, owner string, rec models.Record) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO items (id, owner, kind, name, data, version, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, owner, string(rec.Kind), rec.Name, string(rec.Data), rec.Version, r.nextSeq())
	if err != nil {
		return fmt.Errorf("insert item: %w", mapError(err))
	}
	return nil
}

// UpdateItem replaces the name and data of a live item, keeping its place.
func (r *VaultRepository) UpdateItem(ctx context.Context, owner string, rec models.Record) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE items SET name = $1, data = $2, version = $3
		WHERE owner = $4 AND id = $5 AND kind = $6 AND deleted = false
	`, rec.Name, string(rec.Data), rec.Version, owner, rec.ID, string(rec.Kind))
	if err != nil {
		return fmt.Errorf("update item: %w", mapError(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update item %s: %w", rec.ID, err)
	}
	return nil
}

// SoftDeleteItem marks a live item deleted at version; the cleaner purges it
// after the retention period.
func (r *VaultRepository) SoftDeleteItem(ctx context.Context, owner, id string, version int64) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE items SET deleted = true, version = $1
		WHERE owner = $2 AND id = $3 AND deleted = false
	`, version, owner, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// UpdateHistory overwrites the generator history of owner's vault.
func (r *VaultRepository) UpdateHistory(ctx context.Context, owner string, history []string) error {
	if history == nil {
		history = []string{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE vaults SET history = $1 WHERE owner = $2`, string(b), owner)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	return nil
}
