package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yourorg/timetrack/internal/domain"
)

// StatsRepository implements domain.StatsRepository over the document
// store. Stats documents are keyed by the user they aggregate.
type StatsRepository struct {
	store  domain.DocumentStore
	logger *slog.Logger
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(store domain.DocumentStore, logger *slog.Logger) *StatsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsRepository{store: store, logger: logger}
}

// Get retrieves the derived stats for a user
func (r *StatsRepository) Get(ctx context.Context, userID string) (*domain.UserStats, error) {
	data, err := r.store.Get(ctx, domain.CollectionUserStats, userID)
	if err != nil {
		return nil, err
	}
	var s domain.UserStats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return &s, nil
}

// Put replaces the derived stats for a user
func (r *StatsRepository) Put(ctx context.Context, stats *domain.UserStats) error {
	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := r.store.Set(ctx, domain.CollectionUserStats, stats.UserID, doc); err != nil {
		return fmt.Errorf("failed to store stats: %w", err)
	}
	return nil
}
