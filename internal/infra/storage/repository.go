package storage

import (
	"context"
	"errors"
	"time"

	"walletgate/internal/core/domain"
)

var (
	// ErrTaskNotFound is returned when a task doesn't exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskTerminal is returned when an update targets a task that is
	// already in a terminal status. Terminal tasks are immutable.
	ErrTaskTerminal = errors.New("task is in a terminal status")
)

// TaskRepository handles proof-task storage operations.
type TaskRepository interface {
	// Create persists a new task.
	Create(ctx context.Context, task *domain.ProofTask) error

	// GetByID retrieves a task by id.
	GetByID(ctx context.Context, id string) (*domain.ProofTask, error)

	// ListExpired returns all non-terminal tasks whose deadline has passed.
	ListExpired(ctx context.Context, now int64) ([]*domain.ProofTask, error)

	// ListProcessable returns up to limit non-terminal tasks whose deadline
	// has not passed, oldest created first.
	ListProcessable(ctx context.Context, now int64, limit int) ([]*domain.ProofTask, error)

	// Update writes status, attempts, found_tx_hash and error_message.
	// Returns ErrTaskTerminal if the stored row is already terminal.
	Update(ctx context.Context, task *domain.ProofTask) error

	// HasNonTerminal reports whether the user has any task still in flight.
	HasNonTerminal(ctx context.Context, userID string) (bool, error)

	// CancelByUser moves all of the user's non-terminal tasks to cancelled.
	CancelByUser(ctx context.Context, userID string) (int, error)

	// DeleteTerminalOlderThan removes terminal tasks past the retention cutoff.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// WalletLinkRepository handles proved wallet links.
type WalletLinkRepository interface {
	// GetByUser retrieves the user's wallet link, nil when none exists.
	GetByUser(ctx context.Context, userID string) (*domain.WalletLink, error)

	// SaveProofed upserts the link with proofed = true.
	SaveProofed(ctx context.Context, link *domain.WalletLink) error
}
