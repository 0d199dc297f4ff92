package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/observability/metrics"
	"github.com/yourorg/timetrack/internal/security"
	"github.com/yourorg/timetrack/internal/service"
)

// StatsHandler serves derived per-user aggregates
type StatsHandler struct {
	stats    *service.StatsService
	userRepo domain.UserRepository
	authz    *security.AuthorizationService
	logger   *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats *service.StatsService, userRepo domain.UserRepository, authz *security.AuthorizationService, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &StatsHandler{
		stats:    stats,
		userRepo: userRepo,
		authz:    authz,
		logger:   logger,
	}
}

// canViewStats reports whether the actor may read the target user's
// aggregates: themselves, or an elevated role within the same company.
func (h *StatsHandler) canViewStats(r *http.Request, actor *domain.Actor, userID string) bool {
	if actor.ID == userID {
		return true
	}
	if actor.Role == domain.RoleSuperadmin {
		return true
	}
	if actor.Role != domain.RoleManager && actor.Role != domain.RoleAdmin {
		return false
	}
	target, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		return false
	}
	return target.CompanyID == actor.CompanyID
}

// Get handles GET /api/users/{id}/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID := r.PathValue("id")
	if !h.canViewStats(r, actor, userID) {
		writeErrorMsg(w, http.StatusForbidden, "forbidden")
		return
	}

	stats, err := h.stats.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Recompute handles POST /api/users/{id}/stats/recompute, forcing a
// rebuild instead of waiting for the background sweep.
func (h *StatsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID := r.PathValue("id")
	if !h.canViewStats(r, actor, userID) {
		writeErrorMsg(w, http.StatusForbidden, "forbidden")
		return
	}
	// Forcing a rebuild of someone else's aggregates is an admin
	// operation; viewing authority alone is not enough.
	if actor.ID != userID {
		if err := h.authz.ValidatePermission(actor.Role, security.PermRecomputeStats); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	stats, err := h.stats.Recompute(r.Context(), userID)
	if err != nil {
		metrics.ObserveStatsRecompute("api", "error")
		writeError(w, h.logger, err)
		return
	}
	metrics.ObserveStatsRecompute("api", "success")
	writeJSON(w, http.StatusOK, stats)
}
