package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/lifecycle"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// GuardReader answers retrain eligibility without side effects beyond audit
type GuardReader interface {
	CanRetrain(ctx context.Context, horizon contracts.Horizon) contracts.GuardSnapshot
}

// RetrainRunner runs one synchronous retrain attempt
type RetrainRunner interface {
	Run(ctx context.Context, horizon contracts.Horizon) (*lifecycle.RunResult, error)
}

// PointerReader reads the serving pointer
type PointerReader interface {
	Get(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error)
}

// ShadowReportReader reads recent shadow reports
type ShadowReportReader interface {
	Recent(ctx context.Context, horizon contracts.Horizon, modelID string, limit int) ([]contracts.ShadowMonitorReport, error)
}

// LifecycleHandler serves the status and retrain endpoints
// ⭐ SSOT: 수명주기 API 핸들러는 여기서만
type LifecycleHandler struct {
	guard    GuardReader
	pipeline RetrainRunner
	pointers PointerReader
	reports  ShadowReportReader
	logger   *logger.Logger
}

func NewLifecycleHandler(guard GuardReader, pipeline RetrainRunner, pointers PointerReader, reports ShadowReportReader, log *logger.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		guard:    guard,
		pipeline: pipeline,
		pointers: pointers,
		reports:  reports,
		logger:   log,
	}
}

// StatusResponse bundles everything an operator wants in one glance
type StatusResponse struct {
	Horizon    contracts.Horizon              `json:"horizon"`
	Pointer    *contracts.ActiveModelPointer  `json:"pointer"`
	Guard      contracts.GuardSnapshot        `json:"guard"`
	LastReport *contracts.ShadowMonitorReport `json:"last_report,omitempty"`
}

// GetStatus returns pointer, guard snapshot and latest shadow report
// GET /api/v1/status/{horizon}
func (h *LifecycleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	horizon, err := contracts.ParseHorizon(mux.Vars(r)["horizon"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pointer, err := h.pointers.Get(ctx, horizon)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read active pointer")
		respondError(w, http.StatusInternalServerError, "Failed to read active pointer")
		return
	}

	resp := StatusResponse{
		Horizon: horizon,
		Pointer: pointer,
		Guard:   h.guard.CanRetrain(ctx, horizon),
	}

	if pointer.HasActive() {
		reports, err := h.reports.Recent(ctx, horizon, pointer.ActiveModelID, 1)
		if err != nil {
			h.logger.WithError(err).Warn("Failed to read shadow reports")
		} else if len(reports) > 0 {
			resp.LastReport = &reports[0]
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Retrain runs the full pipeline synchronously for one horizon
// POST /api/v1/retrain/{horizon}
func (h *LifecycleHandler) Retrain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	horizon, err := contracts.ParseHorizon(mux.Vars(r)["horizon"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Run(ctx, horizon)
	if err != nil {
		h.logger.WithError(err).WithField("horizon", string(horizon)).Error("Manual retrain failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	status := http.StatusOK
	if result.Blocked() {
		status = http.StatusConflict
	}
	respondJSON(w, status, result)
}
