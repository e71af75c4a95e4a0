package worker

import (
	"context"
	"log/slog"
	"time"

	"walletgate/internal/infra/storage"
	"walletgate/internal/metrics"
)

// Pruner deletes terminal tasks past the retention period. The scheduler never
// deletes tasks; this is the only housekeeping path that does.
type Pruner struct {
	retention time.Duration
	tasks     storage.TaskRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, tasks storage.TaskRepository) *Pruner {
	return &Pruner{retention: retention, tasks: tasks}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check interval: 10% of retention, clamped to [1m, 1h]
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	count, err := p.tasks.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune terminal tasks", "error", err)
		return
	}
	if count > 0 {
		metrics.TasksPruned.Add(float64(count))
		slog.Info("Pruned terminal tasks", "count", count, "cutoff", cutoff)
	}
}
