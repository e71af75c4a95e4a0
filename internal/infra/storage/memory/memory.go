package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"walletgate/internal/core/domain"
	"walletgate/internal/infra/storage"
)

// MemoryStorage backs the repositories for tests and database-less dev runs.
type MemoryStorage struct {
	tasks map[string]*domain.ProofTask
	links map[string]*domain.WalletLink
	mu    sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks: make(map[string]*domain.ProofTask),
		links: make(map[string]*domain.WalletLink),
	}
}

// -----------------------------------------------------------------------------
// Task Repository
// -----------------------------------------------------------------------------

type TaskRepo struct {
	store *MemoryStorage
}

func NewTaskRepo(store *MemoryStorage) *TaskRepo {
	return &TaskRepo{store: store}
}

func (r *TaskRepo) Create(ctx context.Context, task *domain.ProofTask) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t := *task
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.store.tasks[t.ID] = &t
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id string) (*domain.ProofTask, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	task, ok := r.store.tasks[id]
	if !ok {
		return nil, storage.ErrTaskNotFound
	}
	t := *task
	return &t, nil
}

func (r *TaskRepo) ListExpired(ctx context.Context, now int64) ([]*domain.ProofTask, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.ProofTask
	for _, task := range r.store.tasks {
		if !task.Status.Terminal() && task.Deadline <= now {
			t := *task
			out = append(out, &t)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *TaskRepo) ListProcessable(ctx context.Context, now int64, limit int) ([]*domain.ProofTask, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.ProofTask
	for _, task := range r.store.tasks {
		if !task.Status.Terminal() && task.Deadline > now {
			t := *task
			out = append(out, &t)
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TaskRepo) Update(ctx context.Context, task *domain.ProofTask) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.tasks[task.ID]
	if !ok {
		return storage.ErrTaskNotFound
	}
	if stored.Status.Terminal() {
		return storage.ErrTaskTerminal
	}

	stored.Status = task.Status
	stored.Attempts = task.Attempts
	stored.FoundTxHash = task.FoundTxHash
	stored.ErrorMessage = task.ErrorMessage
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *TaskRepo) HasNonTerminal(ctx context.Context, userID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, task := range r.store.tasks {
		if task.UserID == userID && !task.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *TaskRepo) CancelByUser(ctx context.Context, userID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, task := range r.store.tasks {
		if task.UserID == userID && !task.Status.Terminal() {
			task.Status = domain.TaskStatusCancelled
			task.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func (r *TaskRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for id, task := range r.store.tasks {
		if task.Status.Terminal() && task.UpdatedAt.Before(cutoff) {
			delete(r.store.tasks, id)
			count++
		}
	}
	return count, nil
}

func sortByCreated(tasks []*domain.ProofTask) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// -----------------------------------------------------------------------------
// Wallet Link Repository
// -----------------------------------------------------------------------------

type WalletLinkRepo struct {
	store *MemoryStorage
}

func NewWalletLinkRepo(store *MemoryStorage) *WalletLinkRepo {
	return &WalletLinkRepo{store: store}
}

func (r *WalletLinkRepo) GetByUser(ctx context.Context, userID string) (*domain.WalletLink, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	link, ok := r.store.links[userID]
	if !ok {
		return nil, nil
	}
	l := *link
	return &l, nil
}

func (r *WalletLinkRepo) SaveProofed(ctx context.Context, link *domain.WalletLink) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now()
	stored, ok := r.store.links[link.UserID]
	if !ok {
		l := *link
		l.Proofed = true
		l.CreatedAt = now
		l.UpdatedAt = now
		r.store.links[link.UserID] = &l
		return nil
	}

	stored.Proofed = true
	if link.Address != "" {
		stored.Address = link.Address
	}
	if link.TaskID != "" {
		stored.TaskID = link.TaskID
	}
	stored.UpdatedAt = now
	return nil
}
