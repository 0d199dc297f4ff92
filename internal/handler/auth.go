package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/security/middleware"
	"github.com/yourorg/timetrack/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Password  string      `json:"password"`
	CompanyID string      `json:"companyId"`
	ManagerID string      `json:"managerId,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode register request",
			slog.String("error", err.Error()),
		)
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email == "" || req.Password == "" || req.Name == "" || req.CompanyID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "email, name, password, and companyId are required")
		return
	}

	// Elevated roles cannot be self-assigned at the public endpoint
	role := req.Role
	if role != "" && role != domain.RoleUser {
		claims := middleware.GetClaimsFromContext(r.Context())
		if claims == nil || (claims.Role != domain.RoleAdmin && claims.Role != domain.RoleSuperadmin) {
			writeErrorMsg(w, http.StatusForbidden, "only admins can assign elevated roles")
			return
		}
	}

	result, err := h.authService.Register(r.Context(), req.Email, req.Name, req.Password, req.CompanyID, req.ManagerID, role)
	if err != nil {
		h.logger.Info("registration failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("user registered",
		slog.String("user_id", result.UserID),
		slog.String("email", result.Email),
		slog.String("company_id", result.CompanyID),
	)
	writeJSON(w, http.StatusCreated, result)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request",
			slog.String("error", err.Error()),
		)
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeErrorMsg(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErrorMsg(w, http.StatusUnauthorized, err.Error())
		return
	}

	h.logger.Info("user logged in",
		slog.String("user_id", result.UserID),
		slog.String("email", result.Email),
	)
	writeJSON(w, http.StatusOK, result)
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		writeErrorMsg(w, http.StatusBadRequest, "oldPassword and newPassword are required")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("user changed password", slog.String("user_id", claims.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed successfully"})
}
