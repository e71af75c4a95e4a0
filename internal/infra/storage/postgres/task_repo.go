package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"walletgate/internal/core/domain"
	"walletgate/internal/infra/storage"
)

// terminalSet mirrors domain.TerminalStatuses for SQL predicates.
const terminalSet = `('success', 'failed_no_tx', 'expired', 'error', 'cancelled')`

// TaskRepo implements storage.TaskRepository using PostgreSQL.
type TaskRepo struct {
	db *DB
}

// NewTaskRepo creates a new PostgreSQL task repository.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

type taskRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	WalletCipher string    `db:"wallet_cipher"`
	AfterTS      int64     `db:"after_ts"`
	Deadline     int64     `db:"deadline"`
	Status       string    `db:"status"`
	Attempts     int       `db:"attempts"`
	FoundTxHash  string    `db:"found_tx_hash"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r taskRow) toDomain() *domain.ProofTask {
	return &domain.ProofTask{
		ID:           r.ID,
		UserID:       r.UserID,
		WalletCipher: r.WalletCipher,
		AfterTS:      r.AfterTS,
		Deadline:     r.Deadline,
		Status:       domain.TaskStatus(r.Status),
		Attempts:     r.Attempts,
		FoundTxHash:  r.FoundTxHash,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const taskColumns = `id, user_id, wallet_cipher, after_ts, deadline, status,
	attempts, found_tx_hash, error_message, created_at, updated_at`

// Create persists a new task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.ProofTask) error {
	query := `
		INSERT INTO proof_tasks (
			id, user_id, wallet_cipher, after_ts, deadline, status,
			attempts, found_tx_hash, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.UserID, task.WalletCipher,
		task.AfterTS, task.Deadline, string(task.Status),
		task.Attempts, task.FoundTxHash, task.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by id.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*domain.ProofTask, error) {
	var row taskRow
	query := `SELECT ` + taskColumns + ` FROM proof_tasks WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return row.toDomain(), nil
}

// ListExpired returns all non-terminal tasks whose deadline has passed.
func (r *TaskRepo) ListExpired(ctx context.Context, now int64) ([]*domain.ProofTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM proof_tasks
		WHERE status NOT IN ` + terminalSet + ` AND deadline <= $1
		ORDER BY created_at ASC
	`
	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to list expired tasks: %w", err)
	}
	return rowsToDomain(rows), nil
}

// ListProcessable returns up to limit non-terminal tasks still inside their
// window, oldest created first.
func (r *TaskRepo) ListProcessable(ctx context.Context, now int64, limit int) ([]*domain.ProofTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM proof_tasks
		WHERE status NOT IN ` + terminalSet + ` AND deadline > $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list processable tasks: %w", err)
	}
	return rowsToDomain(rows), nil
}

// Update writes the mutable task fields. The status guard makes terminal
// tasks immutable at the store level too.
func (r *TaskRepo) Update(ctx context.Context, task *domain.ProofTask) error {
	query := `
		UPDATE proof_tasks
		SET status = $2, attempts = $3, found_tx_hash = $4,
			error_message = $5, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ` + terminalSet
	res, err := r.db.ExecContext(ctx, query,
		task.ID, string(task.Status), task.Attempts,
		task.FoundTxHash, task.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, task.ID); errors.Is(getErr, storage.ErrTaskNotFound) {
			return storage.ErrTaskNotFound
		}
		return storage.ErrTaskTerminal
	}
	return nil
}

// HasNonTerminal reports whether the user has a task still in flight.
func (r *TaskRepo) HasNonTerminal(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM proof_tasks
			WHERE user_id = $1 AND status NOT IN ` + terminalSet + `
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("failed to check active tasks: %w", err)
	}
	return exists, nil
}

// CancelByUser moves all of the user's non-terminal tasks to cancelled.
func (r *TaskRepo) CancelByUser(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE proof_tasks
		SET status = 'cancelled', updated_at = NOW()
		WHERE user_id = $1 AND status NOT IN ` + terminalSet
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read cancel result: %w", err)
	}
	return int(affected), nil
}

// DeleteTerminalOlderThan removes terminal tasks past the retention cutoff.
func (r *TaskRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM proof_tasks
		WHERE status IN ` + terminalSet + ` AND updated_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read prune result: %w", err)
	}
	return int(affected), nil
}

func rowsToDomain(rows []taskRow) []*domain.ProofTask {
	tasks := make([]*domain.ProofTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toDomain())
	}
	return tasks
}
