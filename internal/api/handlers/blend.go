package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wonny/cortex/backend/internal/blend"
	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// Blender is the inference-path scoring surface
type Blender interface {
	Score(ctx context.Context, horizon contracts.Horizon, baseConfidence float64, features map[string]float64) blend.Result
}

// BlendHandler serves the synchronous confidence-blend endpoint.
// 룰 엔진이 판정 직후 호출 — 지연에 민감하므로 이 핸들러는 절대 실패하지 않는다
type BlendHandler struct {
	blender Blender
	logger  *logger.Logger
}

func NewBlendHandler(blender Blender, log *logger.Logger) *BlendHandler {
	return &BlendHandler{
		blender: blender,
		logger:  log,
	}
}

// BlendRequest is the inference-path payload
type BlendRequest struct {
	Horizon        string             `json:"horizon"`
	BaseConfidence float64            `json:"base_confidence"`
	Features       map[string]float64 `json:"features"`
}

// Blend adjusts the rule engine's confidence with the active model
// POST /api/v1/blend
func (h *BlendHandler) Blend(w http.ResponseWriter, r *http.Request) {
	var req BlendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	horizon, err := contracts.ParseHorizon(req.Horizon)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BaseConfidence < 0 || req.BaseConfidence > 100 {
		respondError(w, http.StatusBadRequest, "base_confidence must be in [0, 100]")
		return
	}

	result := h.blender.Score(r.Context(), horizon, req.BaseConfidence, req.Features)
	respondJSON(w, http.StatusOK, result)
}
