package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/validation"
)

var (
	owner      = &domain.Actor{ID: "user-1", Role: domain.RoleUser, CompanyID: "acme"}
	manager    = &domain.Actor{ID: "mgr-1", Role: domain.RoleManager, CompanyID: "acme"}
	otherMgr   = &domain.Actor{ID: "mgr-2", Role: domain.RoleManager, CompanyID: "acme"}
	admin      = &domain.Actor{ID: "adm-1", Role: domain.RoleAdmin, CompanyID: "acme"}
	superadmin = &domain.Actor{ID: "root", Role: domain.RoleSuperadmin, CompanyID: ""}
	intruder   = &domain.Actor{ID: "user-2", Role: domain.RoleUser, CompanyID: "acme"}
)

func testMachine() *Machine {
	clock := domain.ClockFunc(func() time.Time {
		return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	})
	return NewMachine(validation.New(), clock, nil)
}

func draftEntry() *domain.TimeEntry {
	return &domain.TimeEntry{
		ID:           "e1",
		UserID:       "user-1",
		CompanyID:    "acme",
		ManagerID:    "mgr-1",
		Date:         "2026-03-02",
		YearWeek:     "2026-09",
		Hours:        9,
		RegularHours: 8,
		OvertimeHours: 1,
		Status:       domain.StatusPending,
	}
}

func submittedEntry(t *testing.T, m *Machine) *domain.TimeEntry {
	t.Helper()
	e, err := m.Submit(draftEntry(), owner, domain.DefaultWeekConfig())
	if err != nil {
		t.Fatalf("setup submit failed: %v", err)
	}
	return e
}

func TestSubmitApproveFlow(t *testing.T) {
	m := testMachine()
	week := domain.DefaultWeekConfig()

	submitted, err := m.Submit(draftEntry(), owner, week)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !submitted.IsSubmitted || !submitted.NeedsApproval || submitted.Status != domain.StatusPending {
		t.Fatalf("submitted state wrong: %+v", submitted)
	}

	approved, err := m.Approve(submitted, manager, week, ApproveOptions{OvertimeApproved: true})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != domain.StatusApproved || !approved.ManagerApproved {
		t.Fatalf("approved state wrong: %+v", approved)
	}
	if approved.ManagerApprovedBy != "mgr-1" || approved.ApprovedBy != "mgr-1" {
		t.Error("approval provenance missing")
	}
	if !approved.OvertimeApproved {
		t.Error("overtime approval not recorded")
	}

	// The prior record is untouched
	if submitted.Status != domain.StatusPending {
		t.Error("approve mutated its input")
	}
}

func TestSubmitRequiresDraft(t *testing.T) {
	m := testMachine()
	submitted := submittedEntry(t, m)

	_, err := m.Submit(submitted, owner, domain.DefaultWeekConfig())
	if !domain.IsInvalidTransition(err) {
		t.Errorf("double submit = %v, want InvalidTransitionError", err)
	}
}

func TestSubmitAuthority(t *testing.T) {
	m := testMachine()
	week := domain.DefaultWeekConfig()

	if _, err := m.Submit(draftEntry(), intruder, week); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-owner submit = %v, want ErrForbidden", err)
	}
	// Admins may submit on behalf of their company's users
	if _, err := m.Submit(draftEntry(), admin, week); err != nil {
		t.Errorf("admin submit failed: %v", err)
	}
	if _, err := m.Submit(draftEntry(), nil, week); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("nil actor submit = %v, want ErrUnauthenticated", err)
	}
}

func TestApproveAuthority(t *testing.T) {
	m := testMachine()
	week := domain.DefaultWeekConfig()

	cases := []struct {
		name    string
		actor   *domain.Actor
		allowed bool
	}{
		{"assigned manager", manager, true},
		{"other manager", otherMgr, false},
		{"owner", owner, false},
		{"company admin", admin, true},
		{"superadmin", superadmin, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Approve(submittedEntry(t, m), tc.actor, week, ApproveOptions{})
			if tc.allowed && err != nil {
				t.Errorf("expected approval to succeed: %v", err)
			}
			if !tc.allowed && !errors.Is(err, domain.ErrForbidden) {
				t.Errorf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestApproveUnsubmittedEntry(t *testing.T) {
	m := testMachine()

	_, err := m.Approve(draftEntry(), manager, domain.DefaultWeekConfig(), ApproveOptions{})
	if !domain.IsInvalidTransition(err) {
		t.Errorf("approving a draft = %v, want InvalidTransitionError", err)
	}
}

func TestApproveAlreadyDecidedIsConflict(t *testing.T) {
	m := testMachine()
	week := domain.DefaultWeekConfig()

	approved, err := m.Approve(submittedEntry(t, m), manager, week, ApproveOptions{})
	if err != nil {
		t.Fatalf("setup approve failed: %v", err)
	}

	// A second decision means the caller read stale state
	_, err = m.Approve(approved, manager, week, ApproveOptions{})
	if !domain.IsConflict(err) {
		t.Errorf("second approve = %v, want ConflictError", err)
	}
	_, err = m.Reject(approved, manager, week, "late")
	if !domain.IsConflict(err) {
		t.Errorf("reject after approve = %v, want ConflictError", err)
	}
}

func TestRejectRequiresNotes(t *testing.T) {
	m := testMachine()

	_, err := m.Reject(submittedEntry(t, m), manager, domain.DefaultWeekConfig(), "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("empty-notes reject = %v, want ValidationError", err)
	}
	if verr.Violations[0].Field != "managerNotes" {
		t.Errorf("violation on %s, want managerNotes", verr.Violations[0].Field)
	}
}

func TestRejectThenReopen(t *testing.T) {
	m := testMachine()
	week := domain.DefaultWeekConfig()

	rejected, err := m.Reject(submittedEntry(t, m), manager, week, "hours look wrong")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != domain.StatusRejected || rejected.ManagerNotes != "hours look wrong" {
		t.Fatalf("rejected state wrong: %+v", rejected)
	}

	reopened, err := m.Reopen(rejected, owner, week)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.Workflow().Kind != domain.WorkflowDraft {
		t.Fatalf("reopened entry not a draft: %+v", reopened)
	}
	if reopened.ManagerNotes != "" || reopened.ManagerApprovedBy != "" {
		t.Error("reopen did not clear rejection provenance")
	}

	// Only rejected entries can be reopened
	if _, err := m.Reopen(reopened, owner, week); !domain.IsInvalidTransition(err) {
		t.Errorf("reopening a draft = %v, want InvalidTransitionError", err)
	}
}

func TestSoftDelete(t *testing.T) {
	m := testMachine()
	week := domain.DefaultWeekConfig()

	deleted, err := m.SoftDelete(draftEntry(), owner, week)
	if err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if !deleted.IsDeleted {
		t.Error("entry not flagged deleted")
	}

	// Deletion is allowed from any state, including approved
	approved, err := m.Approve(submittedEntry(t, m), manager, week, ApproveOptions{})
	if err != nil {
		t.Fatalf("setup approve failed: %v", err)
	}
	if _, err := m.SoftDelete(approved, manager, week); err != nil {
		t.Errorf("deleting an approved entry failed: %v", err)
	}

	if _, err := m.SoftDelete(draftEntry(), intruder, week); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("intruder delete = %v, want ErrForbidden", err)
	}
}

func TestSoftDeleteRevalidates(t *testing.T) {
	m := testMachine()

	bad := draftEntry()
	bad.RegularHours = 2 // sum no longer matches the total

	if _, err := m.SoftDelete(bad, owner, domain.DefaultWeekConfig()); !domain.IsValidation(err) {
		t.Errorf("deleting an invalid entry = %v, want ValidationError", err)
	}
}

func TestTransitionRevalidates(t *testing.T) {
	m := testMachine()

	bad := draftEntry()
	bad.RegularHours = 2 // sum no longer matches the total

	_, err := m.Submit(bad, owner, domain.DefaultWeekConfig())
	if !domain.IsValidation(err) {
		t.Errorf("submitting an invalid entry = %v, want ValidationError", err)
	}
}
