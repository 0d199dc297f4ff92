package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/security/middleware"
	"github.com/yourorg/timetrack/internal/service"
	"github.com/yourorg/timetrack/internal/validation"
	"github.com/yourorg/timetrack/internal/workflow"
)

// EntryHandler handles the time-entry CRUD and workflow endpoints
type EntryHandler struct {
	entries *service.EntryService
	logger  *slog.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(entries *service.EntryService, logger *slog.Logger) *EntryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntryHandler{
		entries: entries,
		logger:  logger,
	}
}

// actorSource resolves the acting identity for every handler. Tests
// swap it for a fixed provider via SetActorProvider.
var actorSource domain.ActorProvider = middleware.ContextActorProvider{}

// SetActorProvider overrides how handlers resolve the current actor.
func SetActorProvider(p domain.ActorProvider) {
	if p == nil {
		p = middleware.ContextActorProvider{}
	}
	actorSource = p
}

// currentActor derives the acting identity from the request context
func currentActor(r *http.Request) *domain.Actor {
	return actorSource.CurrentActor(r.Context())
}

// listFilterParams are the query parameters accepted by the list
// endpoint. Anything else is ignored rather than rejected.
var listFilterParams = []string{"userId", "companyId", "date", "yearWeek", "status", "managerId", "isTimeOff"}

// Create handles POST /api/entries
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input validation.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("failed to decode entry request", slog.String("error", err.Error()))
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}

	entry, err := h.entries.Create(r.Context(), actor, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// List handles GET /api/entries
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := domain.Filter{}
	q := r.URL.Query()
	for _, p := range listFilterParams {
		if v := q.Get(p); v != "" {
			filter[p] = v
		}
	}

	entries, err := h.entries.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*domain.TimeEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Get handles GET /api/entries/{id}
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entry, err := h.entries.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Update handles PUT /api/entries/{id}
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input validation.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("failed to decode entry request", slog.String("error", err.Error()))
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}

	entry, err := h.entries.UpdateDraft(r.Context(), actor, r.PathValue("id"), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/entries/{id}. Entries are only ever
// soft-deleted; the document survives for audit but stops matching
// queries.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entry, err := h.entries.SoftDelete(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Submit handles POST /api/entries/{id}/submit
func (h *EntryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entry, err := h.entries.Submit(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ApproveRequest represents the approval body
type ApproveRequest struct {
	OvertimeApproved bool   `json:"overtimeApproved"`
	Notes            string `json:"notes,omitempty"`
}

// Approve handles POST /api/entries/{id}/approve
func (h *EntryHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Body is optional: a bare approve carries no overtime sign-off
	var req ApproveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "invalid request")
			return
		}
	}

	entry, err := h.entries.Approve(r.Context(), actor, r.PathValue("id"), workflow.ApproveOptions{
		OvertimeApproved: req.OvertimeApproved,
		Notes:            req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// RejectRequest represents the rejection body
type RejectRequest struct {
	Notes string `json:"notes"`
}

// Reject handles POST /api/entries/{id}/reject
func (h *EntryHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}

	entry, err := h.entries.Reject(r.Context(), actor, r.PathValue("id"), req.Notes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Reopen handles POST /api/entries/{id}/reopen
func (h *EntryHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entry, err := h.entries.Reopen(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
