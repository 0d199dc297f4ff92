package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/provenance"
	"github.com/yourorg/timetrack/internal/query"
	"github.com/yourorg/timetrack/internal/store/memory"
	"github.com/yourorg/timetrack/internal/validation"
	"github.com/yourorg/timetrack/internal/workflow"
)

var entryTestNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

var (
	ownerActor      = &domain.Actor{ID: "user-1", Role: domain.RoleUser, CompanyID: "acme"}
	peerActor       = &domain.Actor{ID: "user-2", Role: domain.RoleUser, CompanyID: "acme"}
	managerActor    = &domain.Actor{ID: "mgr-1", Role: domain.RoleManager, CompanyID: "acme"}
	adminActor      = &domain.Actor{ID: "adm-1", Role: domain.RoleAdmin, CompanyID: "acme"}
	superadminActor = &domain.Actor{ID: "root", Role: domain.RoleSuperadmin, CompanyID: ""}
)

func hoursPtr(v float64) *float64 { return &v }

func newTestEntryService(t *testing.T) (*EntryService, *memory.Store) {
	t.Helper()

	st := memory.New()
	clock := domain.ClockFunc(func() time.Time { return entryTestNow })
	orch := query.NewOrchestrator(query.DefaultOptions(), clock, nil)
	validator := validation.New()
	stamper := provenance.NewStamper(clock)
	machine := workflow.NewMachine(validator, clock, nil)

	svc := NewEntryService(st, orch, validator, stamper, machine, clock, nil, nil, 1)

	seed(t, st, domain.CollectionCompanies, "acme", domain.Company{
		ID:   "acme",
		Name: "Acme",
		WeekConfig: domain.WeekConfig{
			StartDay:    1,
			WorkingDays: []int{1, 2, 3, 4, 5},
			HoursPerDay: 8,
		},
	})
	seed(t, st, domain.CollectionUsers, "user-1", domain.User{
		ID: "user-1", Email: "u1@acme.test", Role: domain.RoleUser,
		CompanyID: "acme", ManagerID: "mgr-1", IsActive: true,
	})
	seed(t, st, domain.CollectionUsers, "user-2", domain.User{
		ID: "user-2", Email: "u2@acme.test", Role: domain.RoleUser,
		CompanyID: "acme", ManagerID: "mgr-1", IsActive: true,
	})
	return svc, st
}

func seed(t *testing.T, st *memory.Store, collection, id string, v any) {
	t.Helper()
	doc, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal seed %s/%s: %v", collection, id, err)
	}
	if err := st.Set(context.Background(), collection, id, doc); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
}

func regularDay(date string, hours float64) validation.EntryInput {
	return validation.EntryInput{
		Date:             date,
		Hours:            hoursPtr(hours),
		RegularHours:     hoursPtr(hours),
		OvertimeHours:    hoursPtr(0),
		PTOHours:         hoursPtr(0),
		UnpaidLeaveHours: hoursPtr(0),
	}
}

func TestCreateDefaultsFromActor(t *testing.T) {
	svc, st := newTestEntryService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("expected generated id")
	}
	if entry.UserID != "user-1" || entry.CompanyID != "acme" {
		t.Fatalf("ownership not defaulted from actor: %+v", entry)
	}
	if entry.ManagerID != "mgr-1" {
		t.Fatalf("manager not defaulted from owner's user record, got %q", entry.ManagerID)
	}
	if entry.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %q", entry.Status)
	}
	if entry.YearWeek != "2026-09" {
		t.Fatalf("expected yearWeek 2026-09, got %q", entry.YearWeek)
	}
	if entry.CreatedBy != "user-1" || !entry.CreatedAt.Equal(entryTestNow) {
		t.Fatalf("create provenance not stamped: %+v", entry)
	}

	doc, err := st.Get(ctx, domain.CollectionEntries, entry.ID)
	if err != nil {
		t.Fatalf("entry not persisted: %v", err)
	}
	var stored domain.TimeEntry
	if err := json.Unmarshal(doc, &stored); err != nil {
		t.Fatalf("unmarshal stored entry: %v", err)
	}
	if stored.YearWeek != entry.YearWeek {
		t.Fatalf("stored document diverges from returned entry")
	}
}

func TestCreateForOtherUser(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	in := regularDay("2026-03-02", 8)
	in.UserID = "user-2"
	if _, err := svc.Create(ctx, ownerActor, in); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("plain user creating for peer: expected ErrForbidden, got %v", err)
	}

	entry, err := svc.Create(ctx, adminActor, in)
	if err != nil {
		t.Fatalf("admin creating for user: %v", err)
	}
	if entry.UserID != "user-2" || entry.CreatedBy != "adm-1" {
		t.Fatalf("admin-created entry misattributed: %+v", entry)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestEntryService(t)

	in := regularDay("2026-03-02", 8)
	in.RegularHours = hoursPtr(5) // sum no longer matches total
	_, err := svc.Create(context.Background(), ownerActor, in)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetEnforcesVisibility(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, ownerActor, entry.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.Get(ctx, managerActor, entry.ID); err != nil {
		t.Fatalf("manager get: %v", err)
	}
	if _, err := svc.Get(ctx, peerActor, entry.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("peer get: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, nil, entry.ID); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous get: expected ErrUnauthenticated, got %v", err)
	}
}

func TestGetHidesSoftDeleted(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SoftDelete(ctx, ownerActor, entry.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := svc.Get(ctx, ownerActor, entry.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("owner get of deleted entry: expected ErrNotFound, got %v", err)
	}
	got, err := svc.Get(ctx, adminActor, entry.ID)
	if err != nil {
		t.Fatalf("admin get of deleted entry: %v", err)
	}
	if !got.IsDeleted {
		t.Fatalf("expected deleted flag on admin read")
	}
}

func TestListScopesToActor(t *testing.T) {
	svc, st := newTestEntryService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8)); err != nil {
		t.Fatalf("create owner entry: %v", err)
	}
	in := regularDay("2026-03-03", 8)
	in.UserID = "user-2"
	if _, err := svc.Create(ctx, adminActor, in); err != nil {
		t.Fatalf("create peer entry: %v", err)
	}
	// Entry in another company, visible only to the superadmin.
	seed(t, st, domain.CollectionEntries, "other-1", domain.TimeEntry{
		ID: "other-1", UserID: "user-9", CompanyID: "globex",
		Date: "2026-03-02", YearWeek: "2026-09",
		Hours: 8, RegularHours: 8, Status: domain.StatusPending,
	})

	own, err := svc.List(ctx, ownerActor, nil)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(own) != 1 || own[0].UserID != "user-1" {
		t.Fatalf("owner list should contain only own entries, got %d", len(own))
	}

	company, err := svc.List(ctx, managerActor, nil)
	if err != nil {
		t.Fatalf("manager list: %v", err)
	}
	if len(company) != 2 {
		t.Fatalf("manager list should span the company, got %d", len(company))
	}

	all, err := svc.List(ctx, superadminActor, nil)
	if err != nil {
		t.Fatalf("superadmin list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("superadmin list should span companies, got %d", len(all))
	}
}

func TestListSeesMutationsImmediately(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	first, err := svc.List(ctx, ownerActor, nil)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if len(first) != 0 {
		t.Fatalf("expected empty list, got %d", len(first))
	}

	// The create must invalidate the cached list so the next read does
	// not serve the stale empty result.
	if _, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8)); err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.List(ctx, ownerActor, nil)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("list served stale cache after mutation, got %d entries", len(second))
	}
}

func TestSubmitApproveLifecycle(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	in := regularDay("2026-03-02", 9)
	in.RegularHours = hoursPtr(8)
	in.OvertimeHours = hoursPtr(1)
	entry, err := svc.Create(ctx, ownerActor, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	submitted, err := svc.Submit(ctx, ownerActor, entry.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !submitted.IsSubmitted || !submitted.NeedsApproval {
		t.Fatalf("submit did not flag approval need: %+v", submitted)
	}

	approved, err := svc.Approve(ctx, managerActor, entry.ID, workflow.ApproveOptions{OvertimeApproved: true})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.StatusApproved {
		t.Fatalf("expected approved status, got %q", approved.Status)
	}
	if approved.ManagerApprovedBy != "mgr-1" || !approved.OvertimeApproved {
		t.Fatalf("approval provenance missing: %+v", approved)
	}

	// The decision is final; a second decision is a conflict.
	if _, err := svc.Reject(ctx, managerActor, entry.ID, "changed my mind"); !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestRejectAndReopen(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Submit(ctx, ownerActor, entry.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Reject(ctx, managerActor, entry.ID, ""); !domain.IsValidation(err) {
		t.Fatalf("reject without notes: expected validation error, got %v", err)
	}
	rejected, err := svc.Reject(ctx, managerActor, entry.ID, "wrong project code")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.StatusRejected || rejected.ManagerNotes != "wrong project code" {
		t.Fatalf("rejection not recorded: %+v", rejected)
	}

	reopened, err := svc.Reopen(ctx, ownerActor, entry.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if state := reopened.Workflow(); state.Kind != domain.WorkflowDraft {
		t.Fatalf("expected draft after reopen, got %v", state.Kind)
	}
	if reopened.ManagerApprovedBy != "" || reopened.ManagerNotes != "" {
		t.Fatalf("reopen must clear decision provenance: %+v", reopened)
	}
}

func TestUpdateDraftOnlyEditsDrafts(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateDraft(ctx, ownerActor, entry.ID, regularDay("2026-03-03", 6))
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.Hours != 6 || updated.Date != "2026-03-03" {
		t.Fatalf("draft edit not applied: %+v", updated)
	}
	if !updated.CreatedAt.Equal(entry.CreatedAt) || updated.CreatedBy != entry.CreatedBy {
		t.Fatalf("draft edit must preserve create provenance")
	}

	if _, err := svc.UpdateDraft(ctx, peerActor, entry.ID, regularDay("2026-03-03", 4)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("peer edit: expected ErrForbidden, got %v", err)
	}

	if _, err := svc.Submit(ctx, ownerActor, entry.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.UpdateDraft(ctx, ownerActor, entry.ID, regularDay("2026-03-03", 4)); !domain.IsInvalidTransition(err) {
		t.Fatalf("edit of submitted entry: expected InvalidTransitionError, got %v", err)
	}
}

func TestSoftDeleteHidesFromList(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, ownerActor, regularDay("2026-03-02", 8))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SoftDelete(ctx, ownerActor, entry.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	entries, err := svc.List(ctx, adminActor, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("soft-deleted entry leaked into list")
	}
}

func TestCountAwaitingApproval(t *testing.T) {
	svc, _ := newTestEntryService(t)
	ctx := context.Background()

	for _, date := range []string{"2026-03-02", "2026-03-03"} {
		entry, err := svc.Create(ctx, ownerActor, regularDay(date, 8))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := svc.Submit(ctx, ownerActor, entry.ID); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	// One more draft that must not count.
	if _, err := svc.Create(ctx, ownerActor, regularDay("2026-03-04", 8)); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	n, err := svc.CountAwaitingApproval(ctx, "acme")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 awaiting approval, got %d", n)
	}
}
