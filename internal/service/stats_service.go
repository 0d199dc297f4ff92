package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yourorg/timetrack/internal/domain"
)

// Allowances holds the annual time-off budgets granted to every user.
type Allowances struct {
	PTOHours  float64
	SickHours float64
}

// DefaultAllowances returns the standard annual time-off budgets.
func DefaultAllowances() Allowances {
	return Allowances{PTOHours: 120, SickHours: 40}
}

// StatsService derives per-user aggregates from the entry collection.
// Stats are a pure projection of entries, so a recompute can run at any
// time without coordination.
type StatsService struct {
	store      domain.DocumentStore
	statsRepo  domain.StatsRepository
	userRepo   domain.UserRepository
	companies  domain.CompanyRepository
	allowances Allowances
	clock      domain.Clock
	logger     *slog.Logger
}

// NewStatsService creates a stats service.
func NewStatsService(
	store domain.DocumentStore,
	statsRepo domain.StatsRepository,
	userRepo domain.UserRepository,
	companies domain.CompanyRepository,
	allowances Allowances,
	clock domain.Clock,
	logger *slog.Logger,
) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &StatsService{
		store:      store,
		statsRepo:  statsRepo,
		userRepo:   userRepo,
		companies:  companies,
		allowances: allowances,
		clock:      clock,
		logger:     logger,
	}
}

// Get returns the last recomputed stats for a user, recomputing on the
// spot when none have been stored yet.
func (s *StatsService) Get(ctx context.Context, userID string) (*domain.UserStats, error) {
	stats, err := s.statsRepo.Get(ctx, userID)
	if err == nil {
		return stats, nil
	}
	return s.Recompute(ctx, userID)
}

// Recompute rebuilds a user's aggregates from their entries and stores
// the result. Only approved hours count toward worked totals; time-off
// balances are debited as soon as the entry exists, so a pending PTO
// request already reduces the visible balance.
func (s *StatsService) Recompute(ctx context.Context, userID string) (*domain.UserStats, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	week := domain.DefaultWeekConfig()
	if company, err := s.companies.GetByID(ctx, user.CompanyID); err == nil && company != nil {
		week = company.WeekConfig
	}

	docs, err := s.store.Query(ctx, domain.CollectionEntries, domain.Filter{
		"userId":    userID,
		"isDeleted": "false",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for %s: %w", userID, err)
	}

	now := s.clock.Now()
	yearPrefix := fmt.Sprintf("%04d-", now.Year())
	currentWeek, err := domain.YearWeek(now.Format(domain.DateLayout), week.StartDay)
	if err != nil {
		return nil, fmt.Errorf("failed to derive current week: %w", err)
	}

	stats := &domain.UserStats{
		UserID:       userID,
		PTOBalance:   s.allowances.PTOHours,
		SickBalance:  s.allowances.SickHours,
		RecomputedAt: now,
	}

	for _, doc := range docs {
		var e domain.TimeEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			s.logger.Warn("skipping unreadable entry during recompute",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			continue
		}

		inYear := len(e.Date) >= len(yearPrefix) && e.Date[:len(yearPrefix)] == yearPrefix

		if !e.IsTimeOff && e.Status == domain.StatusApproved && inYear {
			stats.YTDHoursWorked += e.Hours
		}
		if e.YearWeek == currentWeek && e.Status != domain.StatusRejected {
			stats.CurrentWeekHours += e.Hours
		}
		if e.IsTimeOff && e.Status != domain.StatusRejected && inYear {
			switch e.TimeOffType {
			case domain.TimeOffPTO:
				stats.PTOBalance -= e.Hours
			case domain.TimeOffSick:
				stats.SickBalance -= e.Hours
			}
		}
	}

	if err := s.statsRepo.Put(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to store stats for %s: %w", userID, err)
	}

	s.logger.Debug("recomputed user stats",
		slog.String("user_id", userID),
		slog.Float64("ytd_hours", stats.YTDHoursWorked),
		slog.Float64("week_hours", stats.CurrentWeekHours),
	)
	return stats, nil
}

// RecomputeAll rebuilds stats for every active user in a company.
// Returns the number of users recomputed and the first error seen;
// a single bad user does not abort the sweep.
func (s *StatsService) RecomputeAll(ctx context.Context, companyID string) (int, error) {
	users, err := s.userRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("failed to list users for company %s: %w", companyID, err)
	}

	var recomputed int
	var firstErr error
	for _, u := range users {
		if !u.IsActive {
			continue
		}
		if ctx.Err() != nil {
			return recomputed, ctx.Err()
		}
		if _, err := s.Recompute(ctx, u.ID); err != nil {
			s.logger.Error("failed to recompute stats",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		recomputed++
	}
	return recomputed, firstErr
}

// CompanyIDs lists the companies with at least one stored user, so the
// recompute worker can sweep every tenant.
func (s *StatsService) CompanyIDs(ctx context.Context) ([]string, error) {
	docs, err := s.store.Query(ctx, domain.CollectionUsers, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, doc := range docs {
		var u struct {
			CompanyID string `json:"companyId"`
		}
		if err := json.Unmarshal(doc, &u); err != nil || u.CompanyID == "" {
			continue
		}
		if _, ok := seen[u.CompanyID]; ok {
			continue
		}
		seen[u.CompanyID] = struct{}{}
		ids = append(ids, u.CompanyID)
	}
	return ids, nil
}
