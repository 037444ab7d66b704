package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// =============================================================================
// Promotion / Rollback Service
// =============================================================================
// ⭐ SSOT: 포인터 전환은 이 서비스만 수행
// 모든 실패는 typed block reason — 호출자에게 예외를 던지지 않음

// BlockReason is a typed promotion block cause
type BlockReason string

const (
	BlockModelNotFound    BlockReason = "MODEL_NOT_FOUND"
	BlockModelNotApproved BlockReason = "MODEL_NOT_APPROVED"
	BlockHorizonMismatch  BlockReason = "HORIZON_MISMATCH"
	BlockKillSwitch       BlockReason = "KILL_SWITCH_ENABLED"
	BlockDriftCritical    BlockReason = "DRIFT_CRITICAL"
	BlockCooldown         BlockReason = "PROMOTION_COOLDOWN"
	BlockRateLimit        BlockReason = "PROMOTION_RATE_LIMIT"
	BlockInternal         BlockReason = "INTERNAL_ERROR"
)

// PromoteResult is the outcome of one promotion attempt
type PromoteResult struct {
	Decision        string        `json:"decision"` // PROMOTED | BLOCKED
	PreviousModelID string        `json:"previous_model_id,omitempty"`
	BlockedReasons  []BlockReason `json:"blocked_reasons,omitempty"`
	Detail          string        `json:"detail,omitempty"`
}

// RollbackResult is the outcome of one rollback attempt
type RollbackResult struct {
	Success     bool   `json:"success"`
	FromModelID string `json:"from_model_id,omitempty"`
	ToModelID   string `json:"to_model_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// ModelStore reads and transitions model versions (의존성 역전)
type ModelStore interface {
	GetByID(ctx context.Context, id string) (*contracts.ModelVersion, error)
	UpdateStatus(ctx context.Context, id string, from, to contracts.ModelStatus) error
	AppendPromotionRecord(ctx context.Context, id string, record contracts.PromotionRecord) error
}

// PointerStore owns the per-horizon active model pointer
type PointerStore interface {
	Get(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error)
	Swap(ctx context.Context, p *contracts.ActiveModelPointer, expectedVersion int64) error
	CountSwitchesSince(ctx context.Context, horizon contracts.Horizon, since time.Time) (int, error)
}

// Service performs guarded pointer switches in both directions
type Service struct {
	models     ModelStore
	pointers   PointerStore
	killSwitch contracts.KillSwitch
	drift      contracts.DriftSource
	audit      contracts.AuditSink
	cache      *redis.Cache
	metrics    *metrics.Recorder
	cfg        *config.LifecycleConfig
	log        *logger.Logger
	now        func() time.Time
}

func NewService(
	models ModelStore,
	pointers PointerStore,
	killSwitch contracts.KillSwitch,
	drift contracts.DriftSource,
	audit contracts.AuditSink,
	cache *redis.Cache,
	rec *metrics.Recorder,
	cfg *config.LifecycleConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		models:     models,
		pointers:   pointers,
		killSwitch: killSwitch,
		drift:      drift,
		audit:      audit,
		cache:      cache,
		metrics:    rec,
		cfg:        cfg,
		log:        log.WithField("component", "promotion_service"),
		now:        time.Now,
	}
}

// Promote switches the pointer to an APPROVED model.
// 체크는 순서대로 단락 평가: 첫 실패에서 멈추고 그 사유만 보고
func (s *Service) Promote(ctx context.Context, modelID string, horizon contracts.Horizon, triggeredBy string, force bool) *PromoteResult {
	model, err := s.models.GetByID(ctx, modelID)
	if err != nil {
		return s.block(ctx, horizon, modelID, triggeredBy, BlockInternal, fmt.Sprintf("load model: %v", err))
	}
	if model == nil {
		return s.block(ctx, horizon, modelID, triggeredBy, BlockModelNotFound, fmt.Sprintf("model %s not found", modelID))
	}
	if model.Status != contracts.ModelApproved {
		return s.block(ctx, horizon, modelID, triggeredBy, BlockModelNotApproved,
			fmt.Sprintf("model %s is %s, expected APPROVED", modelID, model.Status))
	}
	if model.Horizon != horizon {
		return s.block(ctx, horizon, modelID, triggeredBy, BlockHorizonMismatch,
			fmt.Sprintf("model horizon %s does not match %s", model.Horizon, horizon))
	}

	if !force {
		if s.killSwitch.Enabled(ctx) {
			return s.block(ctx, horizon, modelID, triggeredBy, BlockKillSwitch, "kill switch is enabled")
		}

		level, err := s.drift.CurrentLevel(ctx, horizon)
		if err != nil {
			return s.block(ctx, horizon, modelID, triggeredBy, BlockInternal, fmt.Sprintf("read drift level: %v", err))
		}
		if level == contracts.DriftCritical {
			return s.block(ctx, horizon, modelID, triggeredBy, BlockDriftCritical, "drift level is CRITICAL")
		}
	}

	pointer, err := s.pointers.Get(ctx, horizon)
	if err != nil {
		return s.block(ctx, horizon, modelID, triggeredBy, BlockInternal, fmt.Sprintf("load pointer: %v", err))
	}

	if !force {
		if !pointer.SwitchedAt.IsZero() {
			sinceSwitch := s.now().Sub(pointer.SwitchedAt)
			if sinceSwitch < s.cfg.PromotionCooldown {
				return s.block(ctx, horizon, modelID, triggeredBy, BlockCooldown,
					fmt.Sprintf("last switch %s ago, cooldown is %s", sinceSwitch.Round(time.Minute), s.cfg.PromotionCooldown))
			}
		}

		monthAgo := s.now().Add(-30 * 24 * time.Hour)
		switches, err := s.pointers.CountSwitchesSince(ctx, horizon, monthAgo)
		if err != nil {
			return s.block(ctx, horizon, modelID, triggeredBy, BlockInternal, fmt.Sprintf("count switches: %v", err))
		}
		if switches >= s.cfg.MaxPromotionsMonth {
			return s.block(ctx, horizon, modelID, triggeredBy, BlockRateLimit,
				fmt.Sprintf("%d promotions in the last 30 days, limit is %d", switches, s.cfg.MaxPromotionsMonth))
		}
	}

	previousID := pointer.ActiveModelID

	// 이전 모델 비활성화 → 새 모델 활성화 → 포인터 원자 교체
	if previousID != "" {
		if err := s.models.UpdateStatus(ctx, previousID, contracts.ModelActive, contracts.ModelInactive); err != nil {
			return s.block(ctx, horizon, modelID, triggeredBy, BlockInternal, fmt.Sprintf("demote previous model: %v", err))
		}
	}
	if err := s.models.UpdateStatus(ctx, modelID, contracts.ModelApproved, contracts.ModelActive); err != nil {
		// 이전 모델 복구 시도
		if previousID != "" {
			if restoreErr := s.models.UpdateStatus(ctx, previousID, contracts.ModelInactive, contracts.ModelActive); restoreErr != nil {
				s.log.WithError(restoreErr).WithField("model_id", previousID).Error("Failed to restore previous model after promote failure")
			}
		}
		return s.block(ctx, horizon, modelID, triggeredBy, BlockInternal, fmt.Sprintf("activate model: %v", err))
	}

	swapped := *pointer
	swapped.ActiveModelID = modelID
	swapped.PreviousModelID = previousID
	swapped.HealthStatus = contracts.HealthUnknown
	swapped.SwitchedAt = s.now()
	swapped.SwitchedBy = triggeredBy
	swapped.SwitchReason = "promotion"

	if err := s.pointers.Swap(ctx, &swapped, pointer.Version); err != nil {
		return s.block(ctx, horizon, modelID, triggeredBy, BlockInternal, fmt.Sprintf("swap pointer: %v", err))
	}

	s.invalidateCache(ctx, horizon)
	s.recordHistory(ctx, modelID, "promoted", triggeredBy, "promotion")
	if previousID != "" {
		s.recordHistory(ctx, previousID, "demoted", triggeredBy, "replaced by "+modelID)
	}

	s.metrics.RecordPromotion(string(horizon), "promoted")
	s.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:      contracts.AuditPromoted,
		Horizon:        horizon,
		ModelVersionID: modelID,
		TriggeredBy:    triggeredBy,
		Details: map[string]interface{}{
			"previous_model_id": previousID,
			"force":             force,
		},
	})

	s.log.WithFields(map[string]interface{}{
		"model_id":    modelID,
		"previous_id": previousID,
		"horizon":     string(horizon),
	}).Info("Model promoted")

	return &PromoteResult{Decision: "PROMOTED", PreviousModelID: previousID}
}

// Rollback restores the previous model. 이전 모델이 없으면 멱등한 no-op
func (s *Service) Rollback(ctx context.Context, horizon contracts.Horizon, reason, triggeredBy string) *RollbackResult {
	pointer, err := s.pointers.Get(ctx, horizon)
	if err != nil {
		return &RollbackResult{Success: false, Reason: fmt.Sprintf("load pointer: %v", err)}
	}

	if !pointer.HasPrevious() {
		s.audit.Record(ctx, contracts.AuditLogEntry{
			EventType:   contracts.AuditRollbackNoop,
			Horizon:     horizon,
			TriggeredBy: triggeredBy,
			Details: map[string]interface{}{
				"requested_reason": reason,
			},
		})
		return &RollbackResult{Success: false, Reason: "no previous model"}
	}

	restored, err := s.models.GetByID(ctx, pointer.PreviousModelID)
	if err != nil || restored == nil {
		return &RollbackResult{Success: false, Reason: fmt.Sprintf("previous model %s not fetchable", pointer.PreviousModelID)}
	}

	fromID := pointer.ActiveModelID
	toID := pointer.PreviousModelID

	if fromID != "" {
		if err := s.models.UpdateStatus(ctx, fromID, contracts.ModelActive, contracts.ModelRolledBack); err != nil {
			return &RollbackResult{Success: false, Reason: fmt.Sprintf("demote active model: %v", err)}
		}
	}
	if err := s.models.UpdateStatus(ctx, toID, contracts.ModelInactive, contracts.ModelActive); err != nil {
		if fromID != "" {
			if restoreErr := s.models.UpdateStatus(ctx, fromID, contracts.ModelRolledBack, contracts.ModelActive); restoreErr != nil {
				s.log.WithError(restoreErr).WithField("model_id", fromID).Error("Failed to restore active model after rollback failure")
			}
		}
		return &RollbackResult{Success: false, Reason: fmt.Sprintf("reactivate previous model: %v", err)}
	}

	swapped := *pointer
	swapped.ActiveModelID = toID
	swapped.PreviousModelID = "" // 연속 롤백 방지: 두 번째 호출은 no-op
	swapped.HealthStatus = contracts.HealthUnknown
	swapped.SwitchedAt = s.now()
	swapped.SwitchedBy = triggeredBy
	swapped.SwitchReason = reason
	swapped.RollbackCount = pointer.RollbackCount + 1

	if err := s.pointers.Swap(ctx, &swapped, pointer.Version); err != nil {
		return &RollbackResult{Success: false, Reason: fmt.Sprintf("swap pointer: %v", err)}
	}

	s.invalidateCache(ctx, horizon)
	s.recordHistory(ctx, fromID, "rolled_back", triggeredBy, reason)
	s.recordHistory(ctx, toID, "promoted", triggeredBy, "restored by rollback")

	s.metrics.RecordRollback(string(horizon), triggeredBy)
	s.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:      contracts.AuditRolledBack,
		Horizon:        horizon,
		ModelVersionID: toID,
		TriggeredBy:    triggeredBy,
		Severity:       contracts.AuditWarning,
		Details: map[string]interface{}{
			"from_model_id": fromID,
			"reason":        reason,
		},
	})

	s.log.WithFields(map[string]interface{}{
		"from":    fromID,
		"to":      toID,
		"horizon": string(horizon),
		"reason":  reason,
	}).Warn("Model rolled back")

	return &RollbackResult{Success: true, FromModelID: fromID, ToModelID: toID}
}

// block audits and returns a single-reason BLOCKED result
func (s *Service) block(ctx context.Context, horizon contracts.Horizon, modelID, triggeredBy string, reason BlockReason, detail string) *PromoteResult {
	s.metrics.RecordPromotion(string(horizon), "blocked")
	s.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:      contracts.AuditPromotionBlocked,
		Horizon:        horizon,
		ModelVersionID: modelID,
		TriggeredBy:    triggeredBy,
		Severity:       contracts.AuditWarning,
		Details: map[string]interface{}{
			"reason": string(reason),
			"detail": detail,
		},
	})

	s.log.WithFields(map[string]interface{}{
		"model_id": modelID,
		"horizon":  string(horizon),
		"reason":   string(reason),
		"detail":   detail,
	}).Warn("Promotion blocked")

	return &PromoteResult{
		Decision:       "BLOCKED",
		BlockedReasons: []BlockReason{reason},
		Detail:         detail,
	}
}

func (s *Service) recordHistory(ctx context.Context, modelID, action, triggeredBy, reason string) {
	if modelID == "" {
		return
	}
	err := s.models.AppendPromotionRecord(ctx, modelID, contracts.PromotionRecord{
		Action:      action,
		TriggeredBy: triggeredBy,
		Reason:      reason,
		At:          s.now(),
	})
	if err != nil {
		s.log.WithError(err).WithField("model_id", modelID).Warn("Failed to append promotion history")
	}
}

func (s *Service) invalidateCache(ctx context.Context, horizon contracts.Horizon) {
	if err := s.cache.Delete(ctx, redis.ActivePointerKey(string(horizon))); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate pointer cache")
	}
	if err := s.cache.Delete(ctx, redis.HealthStatusKey(string(horizon))); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate health cache")
	}
}
