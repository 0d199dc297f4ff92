package domain

import "time"

// WorkflowKind identifies the single workflow variant an entry is in.
// The stored record keeps the legacy flat booleans (isSubmitted,
// needsApproval, managerApproved) for compatibility with existing
// documents; the variant is the in-engine representation that makes
// invalid boolean combinations unrepresentable.
type WorkflowKind string

const (
	WorkflowDraft     WorkflowKind = "draft"
	WorkflowSubmitted WorkflowKind = "submitted"
	WorkflowApproved  WorkflowKind = "approved"
	WorkflowRejected  WorkflowKind = "rejected"
)

// WorkflowState is the tagged workflow variant of an entry.
type WorkflowState struct {
	Kind WorkflowKind

	// Approved only
	ApprovedBy       string
	ApprovedAt       time.Time
	OvertimeApproved bool

	// Rejected only
	RejectedBy    string
	RejectedAt    time.Time
	ManagerNotes  string
}

// Workflow computes the tagged variant from the stored flat fields.
func (e *TimeEntry) Workflow() WorkflowState {
	switch {
	case e.Status == StatusApproved:
		return WorkflowState{
			Kind:             WorkflowApproved,
			ApprovedBy:       e.ManagerApprovedBy,
			ApprovedAt:       e.ManagerApprovedDate,
			OvertimeApproved: e.OvertimeApproved,
		}
	case e.Status == StatusRejected:
		return WorkflowState{
			Kind:         WorkflowRejected,
			RejectedBy:   e.ManagerApprovedBy,
			RejectedAt:   e.ManagerApprovedDate,
			ManagerNotes: e.ManagerNotes,
		}
	case e.IsSubmitted:
		return WorkflowState{Kind: WorkflowSubmitted}
	default:
		return WorkflowState{Kind: WorkflowDraft}
	}
}

// ApplyWorkflow projects a variant back onto the flat storage fields.
func (e *TimeEntry) ApplyWorkflow(s WorkflowState) {
	switch s.Kind {
	case WorkflowDraft:
		e.Status = StatusPending
		e.IsSubmitted = false
		e.NeedsApproval = false
		e.ManagerApproved = false
		e.OvertimeApproved = false
		e.ManagerApprovedBy = ""
		e.ManagerApprovedDate = time.Time{}
		e.ManagerNotes = ""
		e.ApprovedBy = ""
		e.ApprovedAt = time.Time{}
	case WorkflowSubmitted:
		e.Status = StatusPending
		e.IsSubmitted = true
		e.NeedsApproval = true
		e.ManagerApproved = false
	case WorkflowApproved:
		e.Status = StatusApproved
		e.IsSubmitted = true
		e.NeedsApproval = false
		e.ManagerApproved = true
		e.OvertimeApproved = s.OvertimeApproved
		e.ManagerApprovedBy = s.ApprovedBy
		e.ManagerApprovedDate = s.ApprovedAt
		e.ApprovedBy = s.ApprovedBy
		e.ApprovedAt = s.ApprovedAt
	case WorkflowRejected:
		e.Status = StatusRejected
		e.IsSubmitted = true
		e.NeedsApproval = false
		e.ManagerApproved = false
		e.ManagerApprovedBy = s.RejectedBy
		e.ManagerApprovedDate = s.RejectedAt
		e.ManagerNotes = s.ManagerNotes
	}
}
