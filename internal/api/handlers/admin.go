package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/promotion"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// Promoter is the promotion service surface the API needs
type Promoter interface {
	Promote(ctx context.Context, modelID string, horizon contracts.Horizon, triggeredBy string, force bool) *promotion.PromoteResult
	Rollback(ctx context.Context, horizon contracts.Horizon, reason, triggeredBy string) *promotion.RollbackResult
}

// Switch toggles and reads the cross-horizon kill switch
type Switch interface {
	Enabled(ctx context.Context) bool
	Set(ctx context.Context, enabled bool, triggeredBy, reason string) error
}

// AuditReader reads recent audit entries
type AuditReader interface {
	Recent(ctx context.Context, horizon contracts.Horizon, limit int) ([]contracts.AuditLogEntry, error)
}

// AdminHandler serves promotion, rollback, kill switch and audit endpoints
type AdminHandler struct {
	promoter   Promoter
	killSwitch Switch
	audit      AuditReader
	logger     *logger.Logger
}

func NewAdminHandler(promoter Promoter, killSwitch Switch, audit AuditReader, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		promoter:   promoter,
		killSwitch: killSwitch,
		audit:      audit,
		logger:     log,
	}
}

// PromoteRequest is the manual promotion payload
type PromoteRequest struct {
	ModelID string `json:"model_id"`
	Horizon string `json:"horizon"`
	Force   bool   `json:"force"`
}

// Promote activates an approved candidate
// POST /api/v1/promote
func (h *AdminHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	horizon, err := contracts.ParseHorizon(req.Horizon)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ModelID == "" {
		respondError(w, http.StatusBadRequest, "model_id is required")
		return
	}

	result := h.promoter.Promote(r.Context(), req.ModelID, horizon, "api", req.Force)

	status := http.StatusOK
	if result.Decision != "PROMOTED" {
		status = http.StatusConflict
	}
	respondJSON(w, status, result)
}

// RollbackRequest is the manual rollback payload
type RollbackRequest struct {
	Horizon string `json:"horizon"`
	Reason  string `json:"reason"`
}

// Rollback reverts the active model to its predecessor
// POST /api/v1/rollback
func (h *AdminHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	horizon, err := contracts.ParseHorizon(req.Horizon)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Reason == "" {
		respondError(w, http.StatusBadRequest, "reason is required")
		return
	}

	result := h.promoter.Rollback(r.Context(), horizon, req.Reason, "api")

	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	respondJSON(w, status, result)
}

// KillSwitchRequest is the kill switch toggle payload
type KillSwitchRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}

// SetKillSwitch flips the cross-horizon kill switch
// POST /api/v1/killswitch
func (h *AdminHandler) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req KillSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		respondError(w, http.StatusBadRequest, "reason is required")
		return
	}

	if err := h.killSwitch.Set(r.Context(), req.Enabled, "api", req.Reason); err != nil {
		h.logger.WithError(err).Error("Failed to set kill switch")
		respondError(w, http.StatusInternalServerError, "Failed to set kill switch")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": req.Enabled,
		"reason":  req.Reason,
	})
}

// GetKillSwitch reports the current kill switch state
// GET /api/v1/killswitch
func (h *AdminHandler) GetKillSwitch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{
		"enabled": h.killSwitch.Enabled(r.Context()),
	})
}

// GetAuditLog returns recent audit entries for a horizon
// GET /api/v1/audit/{horizon}?limit=50
func (h *AdminHandler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	horizon, err := contracts.ParseHorizon(mux.Vars(r)["horizon"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	entries, err := h.audit.Recent(r.Context(), horizon, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read audit log")
		respondError(w, http.StatusInternalServerError, "Failed to read audit log")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"horizon": horizon,
		"count":   len(entries),
		"entries": entries,
	})
}
