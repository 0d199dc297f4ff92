package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/repository"
	"github.com/yourorg/timetrack/internal/service"
	"github.com/yourorg/timetrack/internal/store/memory"
)

func newTestStatsHandler(t *testing.T) (*StatsHandler, domain.UserRepository) {
	t.Helper()
	docs := memory.New()
	userRepo := repository.NewUserRepository(docs, nil)
	statsRepo := repository.NewStatsRepository(docs, nil)
	companyRepo := repository.NewCompanyRepository(docs, nil)
	stats := service.NewStatsService(docs, statsRepo, userRepo, companyRepo,
		service.DefaultAllowances(), nil, nil)
	return NewStatsHandler(stats, userRepo, nil, nil), userRepo
}

func seedUser(t *testing.T, users domain.UserRepository, id string, role domain.Role, companyID string) {
	t.Helper()
	err := users.Create(context.Background(), &domain.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      id,
		Role:      role,
		CompanyID: companyID,
		IsActive:  true,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func recomputeAs(t *testing.T, h *StatsHandler, actor *domain.Actor, targetID string) int {
	t.Helper()
	SetActorProvider(fixedActorProvider{actor: actor})
	defer SetActorProvider(nil)

	r := httptest.NewRequest("POST", "/api/users/"+targetID+"/stats/recompute", nil)
	r.SetPathValue("id", targetID)
	w := httptest.NewRecorder()
	h.Recompute(w, r)
	return w.Code
}

func TestRecomputePermissions(t *testing.T) {
	h, users := newTestStatsHandler(t)
	seedUser(t, users, "u1", domain.RoleUser, "acme")
	seedUser(t, users, "m1", domain.RoleManager, "acme")
	seedUser(t, users, "a1", domain.RoleAdmin, "acme")

	// Anyone may rebuild their own aggregates
	self := &domain.Actor{ID: "u1", Role: domain.RoleUser, CompanyID: "acme"}
	if code := recomputeAs(t, h, self, "u1"); code != http.StatusOK {
		t.Errorf("self recompute = %d, want %d", code, http.StatusOK)
	}

	// Managers can view but not force a rebuild of someone else's
	manager := &domain.Actor{ID: "m1", Role: domain.RoleManager, CompanyID: "acme"}
	if code := recomputeAs(t, h, manager, "u1"); code != http.StatusForbidden {
		t.Errorf("manager recompute of another user = %d, want %d", code, http.StatusForbidden)
	}

	admin := &domain.Actor{ID: "a1", Role: domain.RoleAdmin, CompanyID: "acme"}
	if code := recomputeAs(t, h, admin, "u1"); code != http.StatusOK {
		t.Errorf("admin recompute = %d, want %d", code, http.StatusOK)
	}

	if code := recomputeAs(t, h, nil, "u1"); code != http.StatusUnauthorized {
		t.Errorf("anonymous recompute = %d, want %d", code, http.StatusUnauthorized)
	}
}
