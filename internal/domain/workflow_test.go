package domain

import (
	"testing"
	"time"
)

func TestWorkflowVariantFromFlatFields(t *testing.T) {
	cases := []struct {
		name  string
		entry TimeEntry
		want  WorkflowKind
	}{
		{"fresh entry", TimeEntry{Status: StatusPending}, WorkflowDraft},
		{"submitted", TimeEntry{Status: StatusPending, IsSubmitted: true, NeedsApproval: true}, WorkflowSubmitted},
		{"approved", TimeEntry{Status: StatusApproved, IsSubmitted: true, ManagerApproved: true}, WorkflowApproved},
		{"rejected", TimeEntry{Status: StatusRejected, IsSubmitted: true}, WorkflowRejected},
		// Approved status wins even when boolean flags disagree; the
		// variant never yields an unrepresentable combination
		{"approved with stale flags", TimeEntry{Status: StatusApproved, NeedsApproval: true}, WorkflowApproved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entry.Workflow().Kind; got != tc.want {
				t.Errorf("Workflow().Kind = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestApplyWorkflowRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	e := &TimeEntry{ID: "e1"}

	e.ApplyWorkflow(WorkflowState{Kind: WorkflowSubmitted})
	if e.Status != StatusPending || !e.IsSubmitted || !e.NeedsApproval {
		t.Fatalf("submitted projection wrong: %+v", e)
	}

	e.ApplyWorkflow(WorkflowState{
		Kind:             WorkflowApproved,
		ApprovedBy:       "mgr-1",
		ApprovedAt:       at,
		OvertimeApproved: true,
	})
	if e.Status != StatusApproved || !e.ManagerApproved || e.NeedsApproval {
		t.Fatalf("approved projection wrong: %+v", e)
	}
	if e.ManagerApprovedBy != "mgr-1" || e.ApprovedBy != "mgr-1" {
		t.Error("approval provenance not recorded on both field sets")
	}
	if !e.OvertimeApproved {
		t.Error("overtime approval flag lost")
	}

	state := e.Workflow()
	if state.Kind != WorkflowApproved || state.ApprovedBy != "mgr-1" || !state.ApprovedAt.Equal(at) {
		t.Errorf("recomputed variant lost provenance: %+v", state)
	}
}

func TestApplyWorkflowDraftClearsProvenance(t *testing.T) {
	e := &TimeEntry{ID: "e1"}
	e.ApplyWorkflow(WorkflowState{
		Kind:         WorkflowRejected,
		RejectedBy:   "mgr-1",
		RejectedAt:   time.Now(),
		ManagerNotes: "wrong week",
	})
	if e.Workflow().Kind != WorkflowRejected {
		t.Fatal("expected rejected state")
	}

	e.ApplyWorkflow(WorkflowState{Kind: WorkflowDraft})
	if e.Status != StatusPending || e.IsSubmitted || e.NeedsApproval {
		t.Fatalf("draft projection wrong: %+v", e)
	}
	if e.ManagerApprovedBy != "" || e.ManagerNotes != "" || !e.ManagerApprovedDate.IsZero() {
		t.Error("reopening did not clear prior approval provenance")
	}
}
