package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"walletgate/internal/core/domain"
)

// WalletLinkRepo implements storage.WalletLinkRepository using PostgreSQL.
type WalletLinkRepo struct {
	db *DB
}

// NewWalletLinkRepo creates a new PostgreSQL wallet-link repository.
func NewWalletLinkRepo(db *DB) *WalletLinkRepo {
	return &WalletLinkRepo{db: db}
}

type walletLinkRow struct {
	UserID    string    `db:"user_id"`
	Address   string    `db:"address"`
	Proofed   bool      `db:"proofed"`
	TaskID    string    `db:"task_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetByUser retrieves the user's wallet link, nil when none exists.
func (r *WalletLinkRepo) GetByUser(ctx context.Context, userID string) (*domain.WalletLink, error) {
	var row walletLinkRow
	query := `
		SELECT user_id, address, proofed, task_id, created_at, updated_at
		FROM wallet_links
		WHERE user_id = $1
	`
	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet link: %w", err)
	}

	return &domain.WalletLink{
		UserID:    row.UserID,
		Address:   row.Address,
		Proofed:   row.Proofed,
		TaskID:    row.TaskID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// SaveProofed upserts the link with proofed = true. Empty address or task id
// values never overwrite existing ones.
func (r *WalletLinkRepo) SaveProofed(ctx context.Context, link *domain.WalletLink) error {
	query := `
		INSERT INTO wallet_links (user_id, address, proofed, task_id, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			proofed = TRUE,
			address = CASE WHEN EXCLUDED.address <> '' THEN EXCLUDED.address ELSE wallet_links.address END,
			task_id = CASE WHEN EXCLUDED.task_id <> '' THEN EXCLUDED.task_id ELSE wallet_links.task_id END,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, link.UserID, link.Address, link.TaskID); err != nil {
		return fmt.Errorf("failed to save wallet link: %w", err)
	}
	return nil
}
