package workflow

import (
	"log/slog"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/validation"
)

// Machine governs the legal workflow transitions of a time entry.
// Every transition operates on a clone of the prior record, re-runs the
// schema validator on the result, and returns the new record only when
// it is valid; the prior record is never mutated.
type Machine struct {
	validator *validation.Validator
	clock     domain.Clock
	logger    *slog.Logger
}

// ApproveOptions carries the approval sub-flags. Overtime approval is
// independent of manager approval, so regular hours can be approved
// while overtime remains pending.
type ApproveOptions struct {
	OvertimeApproved bool
	Notes            string
}

// NewMachine creates a workflow machine
func NewMachine(validator *validation.Validator, clock domain.Clock, logger *slog.Logger) *Machine {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{validator: validator, clock: clock, logger: logger}
}

// Submit moves a draft entry into the awaiting-approval state. Only the
// owning user (or an admin over the company) may submit.
func (m *Machine) Submit(e *domain.TimeEntry, actor *domain.Actor, week domain.WeekConfig) (*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	state := e.Workflow()
	if state.Kind != domain.WorkflowDraft {
		return nil, &domain.InvalidTransitionError{Op: "submit", From: state.Kind}
	}
	if actor.ID != e.UserID && !m.hasAdminAuthority(actor, e) {
		return nil, domain.ErrForbidden
	}

	next := e.Clone()
	next.ApplyWorkflow(domain.WorkflowState{Kind: domain.WorkflowSubmitted})
	if err := m.commit(next, week); err != nil {
		return nil, err
	}

	m.logger.Info("entry submitted",
		slog.String("entry_id", e.ID),
		slog.String("user_id", e.UserID),
		slog.String("actor_id", actor.ID),
	)
	return next, nil
}

// Approve marks a submitted entry approved and records manager
// provenance. The actor must be the entry's manager or hold elevated
// authority over the entry's company.
func (m *Machine) Approve(e *domain.TimeEntry, actor *domain.Actor, week domain.WeekConfig, opts ApproveOptions) (*domain.TimeEntry, error) {
	if err := m.requireManagerAuthority(e, actor); err != nil {
		return nil, err
	}
	if err := m.requireAwaitingApproval(e, "approve"); err != nil {
		return nil, err
	}

	next := e.Clone()
	next.ApplyWorkflow(domain.WorkflowState{
		Kind:             domain.WorkflowApproved,
		ApprovedBy:       actor.ID,
		ApprovedAt:       m.clock.Now(),
		OvertimeApproved: opts.OvertimeApproved,
	})
	if opts.Notes != "" {
		next.ManagerNotes = opts.Notes
	}
	if err := m.commit(next, week); err != nil {
		return nil, err
	}

	m.logger.Info("entry approved",
		slog.String("entry_id", e.ID),
		slog.String("approved_by", actor.ID),
		slog.Bool("overtime_approved", opts.OvertimeApproved),
	)
	return next, nil
}

// Reject marks a submitted entry rejected. Manager notes are mandatory
// so the employee knows what to correct.
func (m *Machine) Reject(e *domain.TimeEntry, actor *domain.Actor, week domain.WeekConfig, notes string) (*domain.TimeEntry, error) {
	if err := m.requireManagerAuthority(e, actor); err != nil {
		return nil, err
	}
	if notes == "" {
		return nil, domain.NewValidationError("managerNotes", "rejection requires non-empty manager notes")
	}
	if err := m.requireAwaitingApproval(e, "reject"); err != nil {
		return nil, err
	}

	next := e.Clone()
	next.ApplyWorkflow(domain.WorkflowState{
		Kind:         domain.WorkflowRejected,
		RejectedBy:   actor.ID,
		RejectedAt:   m.clock.Now(),
		ManagerNotes: notes,
	})
	if err := m.commit(next, week); err != nil {
		return nil, err
	}

	m.logger.Info("entry rejected",
		slog.String("entry_id", e.ID),
		slog.String("rejected_by", actor.ID),
	)
	return next, nil
}

// Reopen moves a rejected entry back to draft so the owner can correct
// and resubmit it. Prior approval provenance is cleared. Allowed for
// the owning user or anyone with manager authority over the entry.
func (m *Machine) Reopen(e *domain.TimeEntry, actor *domain.Actor, week domain.WeekConfig) (*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if actor.ID != e.UserID && !m.canManage(actor, e) {
		return nil, domain.ErrForbidden
	}
	state := e.Workflow()
	if state.Kind != domain.WorkflowRejected {
		return nil, &domain.InvalidTransitionError{Op: "reopen", From: state.Kind}
	}

	next := e.Clone()
	next.ApplyWorkflow(domain.WorkflowState{Kind: domain.WorkflowDraft})
	if err := m.commit(next, week); err != nil {
		return nil, err
	}

	m.logger.Info("entry reopened",
		slog.String("entry_id", e.ID),
		slog.String("actor_id", actor.ID),
	)
	return next, nil
}

// SoftDelete flags an entry deleted from any state. Records are
// retained for audit history; no undelete transition exists.
func (m *Machine) SoftDelete(e *domain.TimeEntry, actor *domain.Actor, week domain.WeekConfig) (*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if actor.ID != e.UserID && !m.canManage(actor, e) {
		return nil, domain.ErrForbidden
	}

	next := e.Clone()
	next.IsDeleted = true
	if err := m.commit(next, week); err != nil {
		return nil, err
	}

	m.logger.Info("entry soft-deleted",
		slog.String("entry_id", e.ID),
		slog.String("actor_id", actor.ID),
	)
	return next, nil
}

// commit re-runs the schema validator on the transition result. A
// result that violates the hours invariant is rejected and the prior
// record stays unchanged.
func (m *Machine) commit(next *domain.TimeEntry, week domain.WeekConfig) error {
	if m.validator == nil {
		return nil
	}
	return m.validator.Revalidate(next, week)
}

// requireAwaitingApproval distinguishes a stale read from an illegal
// transition: an entry that already left pending means the caller acted
// on outdated state (Conflict, refetch and retry), while a pending
// entry that was never submitted is simply not approvable.
func (m *Machine) requireAwaitingApproval(e *domain.TimeEntry, op string) error {
	if e.Status != domain.StatusPending {
		return &domain.ConflictError{EntryID: e.ID, Expected: domain.StatusPending, Actual: e.Status}
	}
	if !e.NeedsApproval {
		return &domain.InvalidTransitionError{Op: op, From: e.Workflow().Kind}
	}
	return nil
}

func (m *Machine) requireManagerAuthority(e *domain.TimeEntry, actor *domain.Actor) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	if !m.canManage(actor, e) {
		m.logger.Warn("transition denied",
			slog.String("entry_id", e.ID),
			slog.String("actor_id", actor.ID),
			slog.String("actor_role", string(actor.Role)),
		)
		return domain.ErrForbidden
	}
	return nil
}

// canManage reports whether the actor holds approval authority over the
// entry: its assigned manager, a company admin, or a superadmin.
func (m *Machine) canManage(actor *domain.Actor, e *domain.TimeEntry) bool {
	switch actor.Role {
	case domain.RoleSuperadmin:
		return true
	case domain.RoleAdmin:
		return actor.CompanyID == e.CompanyID
	case domain.RoleManager:
		return actor.CompanyID == e.CompanyID && actor.ID == e.ManagerID
	default:
		return false
	}
}

func (m *Machine) hasAdminAuthority(actor *domain.Actor, e *domain.TimeEntry) bool {
	return actor.Role == domain.RoleSuperadmin ||
		(actor.Role == domain.RoleAdmin && actor.CompanyID == e.CompanyID)
}
