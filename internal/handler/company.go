package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/query"
	"github.com/yourorg/timetrack/internal/security"
)

// CompanyHandler handles company configuration endpoints
type CompanyHandler struct {
	companies    domain.CompanyRepository
	orchestrator *query.Orchestrator
	authz        *security.AuthorizationService
	logger       *slog.Logger
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companies domain.CompanyRepository, orchestrator *query.Orchestrator, authz *security.AuthorizationService, logger *slog.Logger) *CompanyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &CompanyHandler{
		companies:    companies,
		orchestrator: orchestrator,
		authz:        authz,
		logger:       logger,
	}
}

// CompanyRequest represents the create/update body
type CompanyRequest struct {
	Name       string             `json:"name"`
	WeekConfig *domain.WeekConfig `json:"weekConfig,omitempty"`
}

// Create handles POST /api/companies. Superadmin only: companies are
// the tenancy boundary, so nobody inside one may mint another.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if actor.Role != domain.RoleSuperadmin {
		writeErrorMsg(w, http.StatusForbidden, "forbidden")
		return
	}

	var req CompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Name == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name is required")
		return
	}

	now := time.Now()
	company := &domain.Company{
		Name:       req.Name,
		WeekConfig: domain.DefaultWeekConfig(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.WeekConfig != nil {
		if err := validWeekConfig(*req.WeekConfig); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, err.Error())
			return
		}
		company.WeekConfig = *req.WeekConfig
	}

	if err := h.companies.Create(r.Context(), company); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("company created",
		slog.String("company_id", company.ID),
		slog.String("name", company.Name),
	)
	writeJSON(w, http.StatusCreated, company)
}

// Get handles GET /api/companies/{id}
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if actor.Role != domain.RoleSuperadmin && actor.CompanyID != id {
		writeErrorMsg(w, http.StatusForbidden, "forbidden")
		return
	}

	company, err := h.companies.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

// Update handles PUT /api/companies/{id}. Week config changes affect
// how future entries derive their week key; existing entries keep the
// key they were stamped with.
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if err := h.authz.ValidatePermission(actor.Role, security.PermManageCompany); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if actor.Role != domain.RoleSuperadmin && actor.CompanyID != id {
		writeErrorMsg(w, http.StatusForbidden, "forbidden")
		return
	}

	var req CompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}

	company, err := h.companies.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if req.Name != "" {
		company.Name = req.Name
	}
	if req.WeekConfig != nil {
		if err := validWeekConfig(*req.WeekConfig); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, err.Error())
			return
		}
		company.WeekConfig = *req.WeekConfig
	}
	company.UpdatedAt = time.Now()

	if err := h.companies.Update(r.Context(), company); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.orchestrator.InvalidateEntity(domain.CollectionCompanies)

	h.logger.Info("company updated", slog.String("company_id", id))
	writeJSON(w, http.StatusOK, company)
}

func validWeekConfig(wc domain.WeekConfig) error {
	if wc.StartDay < 0 || wc.StartDay > 6 {
		return errInvalidWeekConfig("startDay must be 0-6")
	}
	if len(wc.WorkingDays) == 0 || len(wc.WorkingDays) > 7 {
		return errInvalidWeekConfig("workingDays must list 1-7 days")
	}
	for _, d := range wc.WorkingDays {
		if d < 0 || d > 6 {
			return errInvalidWeekConfig("workingDays entries must be 0-6")
		}
	}
	if wc.HoursPerDay <= 0 || wc.HoursPerDay > 24 {
		return errInvalidWeekConfig("hoursPerDay must be between 0 and 24")
	}
	return nil
}

type errInvalidWeekConfig string

func (e errInvalidWeekConfig) Error() string { return string(e) }
