package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/observability/metrics"
	"github.com/yourorg/timetrack/internal/provenance"
	"github.com/yourorg/timetrack/internal/query"
	"github.com/yourorg/timetrack/internal/security/audit"
	"github.com/yourorg/timetrack/internal/validation"
	"github.com/yourorg/timetrack/internal/workflow"
)

// EntryService owns the time-entry lifecycle: validation, provenance
// stamping, workflow transitions, and persistence through the query
// orchestrator. All reads and writes against the remote store go
// through here.
type EntryService struct {
	store           domain.DocumentStore
	orchestrator    *query.Orchestrator
	validator       *validation.Validator
	stamper         *provenance.Stamper
	machine         *workflow.Machine
	clock           domain.Clock
	logger          *slog.Logger
	auditLog        *audit.Logger
	mutationRetries int
}

// NewEntryService creates a new entry service
func NewEntryService(
	store domain.DocumentStore,
	orchestrator *query.Orchestrator,
	validator *validation.Validator,
	stamper *provenance.Stamper,
	machine *workflow.Machine,
	clock domain.Clock,
	logger *slog.Logger,
	auditLog *audit.Logger,
	mutationRetries int,
) *EntryService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if mutationRetries < 0 {
		mutationRetries = 1
	}
	return &EntryService{
		store:           store,
		orchestrator:    orchestrator,
		validator:       validator,
		stamper:         stamper,
		machine:         machine,
		clock:           clock,
		logger:          logger,
		auditLog:        auditLog,
		mutationRetries: mutationRetries,
	}
}

// Create validates a candidate payload, stamps full provenance, and
// persists a new draft entry.
func (s *EntryService) Create(ctx context.Context, actor *domain.Actor, input validation.EntryInput) (*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if input.UserID == "" {
		input.UserID = actor.ID
	}
	if input.CompanyID == "" {
		input.CompanyID = actor.CompanyID
	}
	if input.UserID != actor.ID && !isElevated(actor) {
		return nil, domain.ErrForbidden
	}

	week := s.weekConfigFor(ctx, input.CompanyID)
	entry, err := s.validator.Validate(input, week, s.clock.Now())
	if err != nil {
		return nil, err
	}

	// Default the approving manager from the owner's user document
	if entry.ManagerID == "" {
		if owner, err := s.getUser(ctx, entry.UserID); err == nil {
			entry.ManagerID = owner.ManagerID
		}
	}

	stamp, err := s.stamper.StampFull(actor)
	if err != nil {
		return nil, err
	}
	entry.ID = uuid.NewString()
	stamp.Apply(entry)

	doc, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	err = s.orchestrator.Mutate(ctx, domain.CollectionEntries, "create entry",
		func(ctx context.Context) error {
			return s.store.Set(ctx, domain.CollectionEntries, entry.ID, doc)
		})
	if err != nil {
		return nil, err
	}

	if s.auditLog != nil {
		s.auditLog.LogEntryAction(ctx, entry.CompanyID, actor.ID, "create", entry.ID, "success", "")
	}
	s.logger.Info("entry created",
		slog.String("entry_id", entry.ID),
		slog.String("user_id", entry.UserID),
		slog.String("year_week", entry.YearWeek),
	)
	return entry, nil
}

// Get retrieves a single entry through the cache. Soft-deleted entries
// are hidden unless the actor holds elevated authority.
func (s *EntryService) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}

	key := query.KeyFor(domain.CollectionEntries, "get", domain.Filter{"id": id})
	result, err := s.orchestrator.Read(ctx, key, func(ctx context.Context) (any, error) {
		return s.fetchEntry(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	entry := result.(*domain.TimeEntry)

	if entry.IsDeleted && !isElevated(actor) {
		return nil, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	if !s.canView(actor, entry) {
		return nil, domain.ErrForbidden
	}
	return entry, nil
}

// List returns entries matching the filter, scoped to what the actor
// may see. Soft-deleted entries are filtered out of every read path.
func (s *EntryService) List(ctx context.Context, actor *domain.Actor, filter domain.Filter) ([]*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	filter = s.scopeFilter(actor, filter)

	key := query.KeyFor(domain.CollectionEntries, "list", filter)
	result, err := s.orchestrator.Read(ctx, key, func(ctx context.Context) (any, error) {
		return s.fetchEntries(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.TimeEntry), nil
}

// PrefetchList warms the cache for an anticipated list read. Failures
// never surface to the caller.
func (s *EntryService) PrefetchList(ctx context.Context, actor *domain.Actor, filter domain.Filter) {
	if actor == nil {
		return
	}
	filter = s.scopeFilter(actor, filter)
	key := query.KeyFor(domain.CollectionEntries, "list", filter)
	s.orchestrator.Prefetch(ctx, key, func(ctx context.Context) (any, error) {
		return s.fetchEntries(ctx, filter)
	})
}

// UpdateDraft edits a draft entry in place. Only the owner may edit,
// only drafts are editable, and the result is fully re-validated.
func (s *EntryService) UpdateDraft(ctx context.Context, actor *domain.Actor, id string, input validation.EntryInput) (*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}

	prior, err := s.fetchEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if prior.IsDeleted {
		return nil, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	if prior.UserID != actor.ID && !isElevated(actor) {
		return nil, domain.ErrForbidden
	}
	if state := prior.Workflow(); state.Kind != domain.WorkflowDraft {
		return nil, &domain.InvalidTransitionError{Op: "edit", From: state.Kind}
	}
	// Date is immutable once an entry has left pending; for drafts an
	// edit may move the day, which re-derives yearWeek below.
	input.UserID = prior.UserID
	input.CompanyID = prior.CompanyID
	if input.Date == "" {
		input.Date = prior.Date
	}
	if input.ManagerID == "" {
		input.ManagerID = prior.ManagerID
	}

	week := s.weekConfigFor(ctx, prior.CompanyID)
	next, err := s.validator.Validate(input, week, s.clock.Now())
	if err != nil {
		return nil, err
	}

	next.ID = prior.ID
	next.CreatedAt = prior.CreatedAt
	next.CreatedBy = prior.CreatedBy
	stamp, err := s.stamper.StampUpdate(actor)
	if err != nil {
		return nil, err
	}
	stamp.ApplyUpdate(next)

	if err := s.persist(ctx, next, "update entry"); err != nil {
		return nil, err
	}
	if s.auditLog != nil {
		s.auditLog.LogEntryAction(ctx, next.CompanyID, actor.ID, "update", next.ID, "success", "")
	}
	return next, nil
}

// Submit moves a draft into the awaiting-approval state
func (s *EntryService) Submit(ctx context.Context, actor *domain.Actor, id string) (*domain.TimeEntry, error) {
	return s.transition(ctx, actor, id, "submit",
		func(prior *domain.TimeEntry, week domain.WeekConfig) (*domain.TimeEntry, error) {
			return s.machine.Submit(prior, actor, week)
		})
}

// Approve approves a submitted entry, optionally including overtime
func (s *EntryService) Approve(ctx context.Context, actor *domain.Actor, id string, opts workflow.ApproveOptions) (*domain.TimeEntry, error) {
	return s.transition(ctx, actor, id, "approve",
		func(prior *domain.TimeEntry, week domain.WeekConfig) (*domain.TimeEntry, error) {
			return s.machine.Approve(prior, actor, week, opts)
		})
}

// Reject rejects a submitted entry with mandatory manager notes
func (s *EntryService) Reject(ctx context.Context, actor *domain.Actor, id, notes string) (*domain.TimeEntry, error) {
	return s.transition(ctx, actor, id, "reject",
		func(prior *domain.TimeEntry, week domain.WeekConfig) (*domain.TimeEntry, error) {
			return s.machine.Reject(prior, actor, week, notes)
		})
}

// Reopen moves a rejected entry back to draft for correction
func (s *EntryService) Reopen(ctx context.Context, actor *domain.Actor, id string) (*domain.TimeEntry, error) {
	return s.transition(ctx, actor, id, "reopen",
		func(prior *domain.TimeEntry, week domain.WeekConfig) (*domain.TimeEntry, error) {
			return s.machine.Reopen(prior, actor, week)
		})
}

// SoftDelete flags an entry deleted; the record is retained for audit
func (s *EntryService) SoftDelete(ctx context.Context, actor *domain.Actor, id string) (*domain.TimeEntry, error) {
	return s.transition(ctx, actor, id, "softDelete",
		func(prior *domain.TimeEntry, week domain.WeekConfig) (*domain.TimeEntry, error) {
			return s.machine.SoftDelete(prior, actor, week)
		})
}

// transition runs a workflow operation against fresh store state. On
// Conflict the prior state is refetched and the transition retried,
// bounded to the mutation retry count.
func (s *EntryService) transition(
	ctx context.Context,
	actor *domain.Actor,
	id, op string,
	apply func(prior *domain.TimeEntry, week domain.WeekConfig) (*domain.TimeEntry, error),
) (*domain.TimeEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}

	var lastErr error
	for attempt := 0; attempt <= s.mutationRetries; attempt++ {
		// Always read the store, not the cache: the transition must be
		// applied against current state.
		prior, err := s.fetchEntry(ctx, id)
		if err != nil {
			metrics.ObserveTransition(op, "error")
			return nil, err
		}
		if prior.IsDeleted && op != "softDelete" {
			metrics.ObserveTransition(op, "error")
			return nil, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
		}

		week := s.weekConfigFor(ctx, prior.CompanyID)
		next, err := apply(prior, week)
		if err != nil {
			if domain.IsConflict(err) && attempt < s.mutationRetries {
				lastErr = err
				continue
			}
			metrics.ObserveTransition(op, transitionResult(err))
			if s.auditLog != nil {
				s.auditLog.LogEntryAction(ctx, prior.CompanyID, actor.ID, op, id, "denied", err.Error())
			}
			return nil, err
		}

		stamp, err := s.stamper.StampUpdate(actor)
		if err != nil {
			return nil, err
		}
		stamp.ApplyUpdate(next)

		if err := s.persist(ctx, next, op+" entry"); err != nil {
			metrics.ObserveTransition(op, "error")
			return nil, err
		}

		metrics.ObserveTransition(op, "success")
		if s.auditLog != nil {
			s.auditLog.LogEntryAction(ctx, next.CompanyID, actor.ID, op, id, "success", "")
		}
		return next, nil
	}
	return nil, lastErr
}

// CountAwaitingApproval refreshes the pending-approval gauge for a company
func (s *EntryService) CountAwaitingApproval(ctx context.Context, companyID string) (int, error) {
	filter := domain.Filter{
		"companyId":     companyID,
		"needsApproval": "true",
		"isDeleted":     "false",
	}
	entries, err := s.fetchEntries(ctx, filter)
	if err != nil {
		return 0, err
	}
	metrics.SetPendingApprovals(len(entries))
	return len(entries), nil
}

// persist marshals and updates an existing entry document, then lets
// the orchestrator invalidate the entries namespace.
func (s *EntryService) persist(ctx context.Context, entry *domain.TimeEntry, op string) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	return s.orchestrator.Mutate(ctx, domain.CollectionEntries, op,
		func(ctx context.Context) error {
			return s.store.Update(ctx, domain.CollectionEntries, entry.ID, doc)
		})
}

// fetchEntry reads an entry document straight from the store
func (s *EntryService) fetchEntry(ctx context.Context, id string) (*domain.TimeEntry, error) {
	doc, err := s.store.Get(ctx, domain.CollectionEntries, id)
	if err != nil {
		return nil, err
	}
	var entry domain.TimeEntry
	if err := json.Unmarshal(doc, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry %s: %w", id, err)
	}
	return &entry, nil
}

func (s *EntryService) fetchEntries(ctx context.Context, filter domain.Filter) ([]*domain.TimeEntry, error) {
	docs, err := s.store.Query(ctx, domain.CollectionEntries, filter)
	if err != nil {
		return nil, err
	}
	entries := make([]*domain.TimeEntry, 0, len(docs))
	for _, doc := range docs {
		var e domain.TimeEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			s.logger.Warn("skipping malformed entry document", slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

func (s *EntryService) getUser(ctx context.Context, id string) (*domain.User, error) {
	doc, err := s.store.Get(ctx, domain.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %s: %w", id, err)
	}
	return &u, nil
}

// weekConfigFor reads the company's week configuration through the
// cache, falling back to the default when the company is missing.
func (s *EntryService) weekConfigFor(ctx context.Context, companyID string) domain.WeekConfig {
	key := query.KeyFor(domain.CollectionCompanies, "get", domain.Filter{"id": companyID})
	result, err := s.orchestrator.Read(ctx, key, func(ctx context.Context) (any, error) {
		doc, err := s.store.Get(ctx, domain.CollectionCompanies, companyID)
		if err != nil {
			return nil, err
		}
		var c domain.Company
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal company %s: %w", companyID, err)
		}
		return &c, nil
	})
	if err != nil {
		return domain.DefaultWeekConfig()
	}
	return result.(*domain.Company).WeekConfig
}

// scopeFilter confines a list filter to what the actor may see: plain
// users only their own entries, managers and admins their company.
func (s *EntryService) scopeFilter(actor *domain.Actor, filter domain.Filter) domain.Filter {
	scoped := domain.Filter{}
	for k, v := range filter {
		scoped[k] = v
	}
	scoped["isDeleted"] = "false"

	switch actor.Role {
	case domain.RoleSuperadmin:
		// unrestricted
	case domain.RoleAdmin, domain.RoleManager:
		scoped["companyId"] = actor.CompanyID
	default:
		scoped["companyId"] = actor.CompanyID
		scoped["userId"] = actor.ID
	}
	return scoped
}

func (s *EntryService) canView(actor *domain.Actor, e *domain.TimeEntry) bool {
	switch actor.Role {
	case domain.RoleSuperadmin:
		return true
	case domain.RoleAdmin, domain.RoleManager:
		return actor.CompanyID == e.CompanyID
	default:
		return actor.ID == e.UserID
	}
}

func isElevated(actor *domain.Actor) bool {
	return actor.Role == domain.RoleAdmin || actor.Role == domain.RoleSuperadmin
}

func transitionResult(err error) string {
	switch {
	case domain.IsConflict(err):
		return "conflict"
	case domain.IsInvalidTransition(err):
		return "invalid_transition"
	case domain.IsValidation(err):
		return "validation_error"
	default:
		return "denied"
	}
}
