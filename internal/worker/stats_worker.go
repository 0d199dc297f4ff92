package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/timetrack/internal/observability/metrics"
	"github.com/yourorg/timetrack/internal/service"
)

// StatsWorker periodically rebuilds derived user stats and refreshes
// the pending-approvals gauge. Stats are a projection of the entry
// collection, so a missed sweep only means stale numbers, never lost
// data.
type StatsWorker struct {
	stats      *service.StatsService
	entries    *service.EntryService
	logger     *slog.Logger
	interval   time.Duration
	maxRetries int
}

// NewStatsWorker creates a new stats recompute worker
func NewStatsWorker(
	stats *service.StatsService,
	entries *service.EntryService,
	logger *slog.Logger,
	interval time.Duration,
) *StatsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsWorker{
		stats:      stats,
		entries:    entries,
		logger:     logger,
		interval:   interval,
		maxRetries: 3,
	}
}

// Start begins the recompute loop. It runs one sweep immediately so
// dashboards are populated right after startup, then ticks.
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep recomputes stats for every tenant and refreshes gauges
func (w *StatsWorker) sweep(ctx context.Context) {
	companies, err := w.stats.CompanyIDs(ctx)
	if err != nil {
		w.logger.Error("failed to list companies for stats sweep",
			slog.String("error", err.Error()),
		)
		metrics.ObserveStatsRecompute("worker", "error")
		return
	}

	pending := 0
	for _, companyID := range companies {
		if ctx.Err() != nil {
			return
		}
		w.recomputeCompany(ctx, companyID)

		count, err := w.entries.CountAwaitingApproval(ctx, companyID)
		if err != nil {
			w.logger.Warn("failed to count pending approvals",
				slog.String("company_id", companyID),
				slog.String("error", err.Error()),
			)
			continue
		}
		pending += count
	}
	metrics.SetPendingApprovals(pending)
}

// recomputeCompany recomputes one tenant with retry logic
func (w *StatsWorker) recomputeCompany(ctx context.Context, companyID string) {
	logger := w.logger.With(slog.String("company_id", companyID))

	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		if attempt > 1 {
			logger.Warn("retrying stats recompute", slog.Int("attempt", attempt))
		}

		recomputed, err := w.stats.RecomputeAll(ctx, companyID)
		if err == nil {
			logger.Debug("stats recompute complete", slog.Int("users", recomputed))
			metrics.ObserveStatsRecompute("worker", "success")
			return
		}
		if ctx.Err() != nil {
			return
		}
		logger.Error("stats recompute failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	logger.Error("stats recompute failed after retries",
		slog.Int("max_retries", w.maxRetries),
	)
	metrics.ObserveStatsRecompute("worker", "error")
}
