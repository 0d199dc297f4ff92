package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/query"
	"github.com/yourorg/timetrack/internal/repository"
	"github.com/yourorg/timetrack/internal/store/memory"
)

func updateCompanyAs(t *testing.T, h *CompanyHandler, actor *domain.Actor, companyID, body string) int {
	t.Helper()
	SetActorProvider(fixedActorProvider{actor: actor})
	defer SetActorProvider(nil)

	r := httptest.NewRequest("PUT", "/api/companies/"+companyID, strings.NewReader(body))
	r.SetPathValue("id", companyID)
	w := httptest.NewRecorder()
	h.Update(w, r)
	return w.Code
}

func TestCompanyUpdatePermissions(t *testing.T) {
	companies := repository.NewCompanyRepository(memory.New(), nil)
	if err := companies.Create(context.Background(), &domain.Company{
		ID:         "acme",
		Name:       "Acme",
		WeekConfig: domain.DefaultWeekConfig(),
		CreatedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	orchestrator := query.NewOrchestrator(query.Options{}, nil, nil)
	h := NewCompanyHandler(companies, orchestrator, nil, nil)

	// Managers hold no company management permission at all
	manager := &domain.Actor{ID: "m1", Role: domain.RoleManager, CompanyID: "acme"}
	if code := updateCompanyAs(t, h, manager, "acme", `{"name":"Acme2"}`); code != http.StatusForbidden {
		t.Errorf("manager update = %d, want %d", code, http.StatusForbidden)
	}

	// Admins manage their own company only
	outsider := &domain.Actor{ID: "a2", Role: domain.RoleAdmin, CompanyID: "globex"}
	if code := updateCompanyAs(t, h, outsider, "acme", `{"name":"Acme2"}`); code != http.StatusForbidden {
		t.Errorf("cross-company admin update = %d, want %d", code, http.StatusForbidden)
	}

	admin := &domain.Actor{ID: "a1", Role: domain.RoleAdmin, CompanyID: "acme"}
	if code := updateCompanyAs(t, h, admin, "acme", `{"name":"Acme2"}`); code != http.StatusOK {
		t.Errorf("same-company admin update = %d, want %d", code, http.StatusOK)
	}
}
