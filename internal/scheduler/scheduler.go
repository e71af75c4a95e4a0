package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"walletgate/internal/core/domain"
	"walletgate/internal/infra/storage"
	"walletgate/internal/locator"
	"walletgate/internal/metrics"
)

// ProofLocator searches the chain for a qualifying proof transaction.
type ProofLocator interface {
	Locate(ctx context.Context, userWallet, targetWallet string, afterTS, deadline int64) locator.Result
}

// WalletDecoder decodes a stored wallet address.
type WalletDecoder interface {
	Decrypt(enc string) (string, error)
}

// CycleLock coordinates cycles across replicas. Optional.
type CycleLock interface {
	AcquireCycleLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseCycleLock(ctx context.Context) error
}

// Config holds scheduler settings.
type Config struct {
	TargetWallet    string
	PollInterval    time.Duration
	BatchSize       int
	MaxTaskAttempts int
}

// Scheduler drives every ProofTask transition on a fixed cadence. Each cycle
// runs a reap phase (expire overdue tasks) followed by a work phase (search
// for proof transactions), each behind its own single-slot guard so a slow
// cycle never overlaps the next tick.
type Scheduler struct {
	cfg     Config
	tasks   storage.TaskRepository
	links   storage.WalletLinkRepository
	locator ProofLocator
	decoder WalletDecoder
	lock    CycleLock // nil when running single-instance

	reapGuard chan struct{}
	workGuard chan struct{}

	now func() time.Time
}

// New creates a scheduler. lock may be nil.
func New(
	cfg Config,
	tasks storage.TaskRepository,
	links storage.WalletLinkRepository,
	loc ProofLocator,
	decoder WalletDecoder,
	lock CycleLock,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxTaskAttempts <= 0 {
		cfg.MaxTaskAttempts = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Scheduler{
		cfg:       cfg,
		tasks:     tasks,
		links:     links,
		locator:   loc,
		decoder:   decoder,
		lock:      lock,
		reapGuard: make(chan struct{}, 1),
		workGuard: make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Start runs the cycle loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("Scheduler started",
		"interval", s.cfg.PollInterval,
		"batch_size", s.cfg.BatchSize,
		"max_attempts", s.cfg.MaxTaskAttempts)

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one reap+work cycle. Safe to invoke more often than it
// can keep up: overlapping phase invocations are skipped, not queued.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if s.lock != nil {
		ok, err := s.lock.AcquireCycleLock(ctx, 2*s.cfg.PollInterval)
		if err != nil {
			slog.Warn("Cycle lock unavailable, skipping cycle", "error", err)
			return
		}
		if !ok {
			slog.Debug("Another instance holds the cycle lock, skipping cycle")
			return
		}
		defer func() {
			if err := s.lock.ReleaseCycleLock(ctx); err != nil {
				slog.Warn("Failed to release cycle lock", "error", err)
			}
		}()
	}

	s.reapExpired(ctx)
	s.processBatch(ctx)
}

// reapExpired moves every overdue non-terminal task to expired. Runs before
// the work phase so no task lingers even if a worker run stalls.
func (s *Scheduler) reapExpired(ctx context.Context) {
	select {
	case s.reapGuard <- struct{}{}:
	default:
		metrics.CycleSkipped.WithLabelValues("reap").Inc()
		slog.Warn("Previous reap phase still running, skipping")
		return
	}
	defer func() { <-s.reapGuard }()

	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("reap").Observe(time.Since(start).Seconds())
	}()

	expired, err := s.tasks.ListExpired(ctx, s.now().Unix())
	if err != nil {
		slog.Error("Failed to list expired tasks", "error", err)
		return
	}

	for _, task := range expired {
		s.finish(ctx, task, domain.TaskStatusExpired,
			"deadline passed before a qualifying transaction was found")
		metrics.TasksReaped.Inc()
	}
	if len(expired) > 0 {
		slog.Info("Reaped expired tasks", "count", len(expired))
	}
}

// processBatch runs one work phase: oldest processable tasks first, one
// search at a time to bound outbound explorer concurrency.
func (s *Scheduler) processBatch(ctx context.Context) {
	select {
	case s.workGuard <- struct{}{}:
	default:
		metrics.CycleSkipped.WithLabelValues("work").Inc()
		slog.Warn("Previous work phase still running, skipping")
		return
	}
	defer func() { <-s.workGuard }()

	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("work").Observe(time.Since(start).Seconds())
	}()

	batch, err := s.tasks.ListProcessable(ctx, s.now().Unix(), s.cfg.BatchSize)
	if err != nil {
		slog.Error("Failed to list processable tasks", "error", err)
		return
	}

	for _, task := range batch {
		if ctx.Err() != nil {
			return
		}
		s.processTask(ctx, task)
	}
}

func (s *Scheduler) processTask(ctx context.Context, task *domain.ProofTask) {
	defer func() {
		if r := recover(); r != nil {
			s.finish(ctx, task, domain.TaskStatusError,
				fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	// Cancelled or otherwise completed between the batch read and now.
	if task.Status.Terminal() {
		return
	}

	if task.Deadline <= s.now().Unix() {
		s.finish(ctx, task, domain.TaskStatusExpired,
			"deadline passed before the search started")
		return
	}

	link, err := s.links.GetByUser(ctx, task.UserID)
	if err != nil {
		s.finish(ctx, task, domain.TaskStatusError,
			fmt.Sprintf("wallet link lookup failed: %v", err))
		return
	}
	if link != nil && link.Proofed {
		// Proof already completed by another task or a previous run.
		if link.TaskID == "" {
			link.TaskID = task.ID
			if err := s.links.SaveProofed(ctx, link); err != nil {
				slog.Warn("Failed to backfill wallet link", "user", task.UserID, "error", err)
			}
		}
		slog.Info("Wallet already proofed, short-circuiting task",
			"task", task.ID, "user", task.UserID)
		s.finish(ctx, task, domain.TaskStatusSuccess, "")
		return
	}

	task.Status = domain.TaskStatusProcessing
	task.Attempts++
	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, storage.ErrTaskTerminal) {
			return
		}
		slog.Error("Failed to mark task processing", "task", task.ID, "error", err)
		return
	}

	wallet, err := s.decoder.Decrypt(task.WalletCipher)
	if err != nil {
		// Fatal for the task: an undecodable address can never be searched.
		s.finish(ctx, task, domain.TaskStatusError, err.Error())
		return
	}

	res := s.locator.Locate(ctx, wallet, s.cfg.TargetWallet, task.AfterTS, task.Deadline)
	if res.Confirmed {
		err := s.links.SaveProofed(ctx, &domain.WalletLink{
			UserID:  task.UserID,
			Address: wallet,
			Proofed: true,
			TaskID:  task.ID,
		})
		if err != nil {
			s.finish(ctx, task, domain.TaskStatusError,
				fmt.Sprintf("failed to record wallet link: %v", err))
			return
		}
		task.FoundTxHash = res.TxHash
		s.finish(ctx, task, domain.TaskStatusSuccess, "")
		return
	}

	switch {
	case task.Deadline <= s.now().Unix():
		s.finish(ctx, task, domain.TaskStatusExpired, res.Reason)
	case task.Attempts >= s.cfg.MaxTaskAttempts:
		s.finish(ctx, task, domain.TaskStatusFailedNoTx,
			fmt.Sprintf("retry ceiling reached after %d attempts: %s", task.Attempts, res.Reason))
	default:
		// Stays in processing; reconsidered next cycle.
		slog.Debug("No proof found yet",
			"task", task.ID, "attempt", task.Attempts, "reason", res.Reason)
	}
}

// finish writes a terminal transition. A lost race against cancellation is a
// no-op: the stored terminal status wins.
func (s *Scheduler) finish(ctx context.Context, task *domain.ProofTask, status domain.TaskStatus, msg string) {
	task.Status = status
	task.ErrorMessage = msg

	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, storage.ErrTaskTerminal) {
			return
		}
		slog.Error("Failed to update task", "task", task.ID, "status", status, "error", err)
		return
	}

	metrics.TaskTransitions.WithLabelValues(string(status)).Inc()
	if status == domain.TaskStatusSuccess {
		slog.Info("Task succeeded", "task", task.ID, "user", task.UserID, "tx", task.FoundTxHash)
	} else {
		slog.Info("Task finished", "task", task.ID, "status", status, "message", msg)
	}
}
