package blend

import (
	"context"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// =============================================================================
// Confidence Blender
// =============================================================================
// ⭐ SSOT: 룰 엔진 신뢰도에 ML 확률을 곱하는 유일한 지점
// 추론 경로의 일부 — 동기적이고 빠르며, 어떤 실패도 위로 전파하지 않는다.
// 범주형 판정(어느 분기로 갈지)은 절대 건드리지 않음: 스칼라 신뢰도만 조정

// Drift level multipliers. 불확실성이 높을수록 신뢰도를 눌러 내림
var driftModifiers = map[contracts.DriftLevel]float64{
	contracts.DriftLow:      1.0,
	contracts.DriftMedium:   0.85,
	contracts.DriftHigh:     0.6,
	contracts.DriftCritical: 0.3,
}

// Result is the outcome of one blend call
type Result struct {
	FinalConfidence float64 `json:"final_confidence"`
	BaseConfidence  float64 `json:"base_confidence"`
	MLModifier      float64 `json:"ml_modifier"`
	DriftModifier   float64 `json:"drift_modifier"`
	MLUsed          bool    `json:"ml_used"`
}

// Blender applies the ML and drift modifiers to a base confidence
type Blender struct {
	cfg *config.LifecycleConfig
}

func NewBlender(cfg *config.LifecycleConfig) *Blender {
	return &Blender{cfg: cfg}
}

// Blend combines the rule engine's confidence with the model's pSuccess.
// pSuccess가 없으면 mlModifier는 정확히 1.0 — ML 부재는 엄격한 no-op,
// 페널티도 부스트도 아니다
func (b *Blender) Blend(baseConfidence float64, pSuccess *float64, driftLevel contracts.DriftLevel) Result {
	drift := driftModifier(driftLevel)

	ml := 1.0
	used := false
	if pSuccess != nil {
		used = true
		ml = clamp(0.7+0.6*(*pSuccess-0.5), b.cfg.MLModifierFloor, 1.0)
		// 고드리프트에서 ML은 억제만 가능, 증폭은 불가
		if driftLevel == contracts.DriftHigh || driftLevel == contracts.DriftCritical {
			ml = clamp(ml, b.cfg.MLModifierFloor, 1.0)
		}
	}

	return Result{
		FinalConfidence: clamp(baseConfidence*ml*drift, 0, 100),
		BaseConfidence:  baseConfidence,
		MLModifier:      ml,
		DriftModifier:   drift,
		MLUsed:          used,
	}
}

func driftModifier(level contracts.DriftLevel) float64 {
	if m, ok := driftModifiers[level]; ok {
		return m
	}
	// 알 수 없는 레벨은 드리프트 없음으로 취급
	return 1.0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// =============================================================================
// Blend Service (inference-path entry point)
// =============================================================================
// 포인터/드리프트/헬스는 캐시에서만 읽고, predict 실패는 전부
// pSuccess=null 강등으로 흡수한다 — 이 경로는 학습 파이프라인을 기다리지 않음

// PointerSource reads the serving pointer (의존성 역전)
type PointerSource interface {
	Get(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error)
}

// Service resolves pSuccess for live requests and delegates to the blender
type Service struct {
	blender    *Blender
	pointers   PointerSource
	killSwitch contracts.KillSwitch
	drift      contracts.DriftSource
	compute    contracts.ComputeService
	cache      *redis.Cache
	metrics    *metrics.Recorder
	log        *logger.Logger
}

func NewService(
	blender *Blender,
	pointers PointerSource,
	killSwitch contracts.KillSwitch,
	drift contracts.DriftSource,
	compute contracts.ComputeService,
	cache *redis.Cache,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Service {
	return &Service{
		blender:    blender,
		pointers:   pointers,
		killSwitch: killSwitch,
		drift:      drift,
		compute:    compute,
		cache:      cache,
		metrics:    rec,
		log:        log.WithField("component", "blend_service"),
	}
}

// Score blends one request's base confidence. Never returns an error:
// 모든 실패 모드는 pSuccess=null 강등으로 수렴
func (s *Service) Score(ctx context.Context, horizon contracts.Horizon, baseConfidence float64, features map[string]float64) Result {
	pSuccess := s.resolvePSuccess(ctx, horizon, features)
	driftLevel := s.resolveDrift(ctx, horizon)

	result := s.blender.Blend(baseConfidence, pSuccess, driftLevel)
	s.metrics.RecordBlendCall(string(horizon), result.MLUsed)
	return result
}

// resolvePSuccess returns nil whenever ML must be a no-op:
// 킬스위치, 활성 모델 없음, predict 실패/타임아웃
func (s *Service) resolvePSuccess(ctx context.Context, horizon contracts.Horizon, features map[string]float64) *float64 {
	if s.killSwitch.Enabled(ctx) {
		return nil
	}

	pointer, err := s.cachedPointer(ctx, horizon)
	if err != nil {
		s.log.WithError(err).WithField("horizon", string(horizon)).Warn("Pointer read failed, degrading to rules-only")
		return nil
	}
	if !pointer.HasActive() {
		return nil
	}

	resp, err := s.compute.Predict(ctx, contracts.PredictRequest{
		Features: []map[string]float64{features},
		Horizon:  horizon,
	})
	if err != nil {
		s.log.WithError(err).WithField("horizon", string(horizon)).Warn("Predict failed, degrading to rules-only")
		return nil
	}
	if len(resp.Predictions) == 0 {
		return nil
	}

	p := resp.Predictions[0].PSuccess
	return &p
}

// cachedPointer serves the pointer from cache; TTL 내 추론 경로는 DB를 보지 않음
func (s *Service) cachedPointer(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error) {
	var pointer contracts.ActiveModelPointer
	err := s.cache.GetOrSet(ctx, redis.ActivePointerKey(string(horizon)), &pointer, redis.TTLMedium, func() (interface{}, error) {
		p, err := s.pointers.Get(ctx, horizon)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return &pointer, nil
}

// resolveDrift falls back to LOW when the signal store is unreachable.
// 드리프트 조회 실패로 추론을 막지 않는다
func (s *Service) resolveDrift(ctx context.Context, horizon contracts.Horizon) contracts.DriftLevel {
	var level contracts.DriftLevel
	err := s.cache.GetOrSet(ctx, redis.DriftLevelKey(string(horizon)), &level, redis.TTLShort, func() (interface{}, error) {
		l, err := s.drift.CurrentLevel(ctx, horizon)
		if err != nil {
			return nil, err
		}
		return l, nil
	})
	if err != nil {
		s.log.WithError(err).WithField("horizon", string(horizon)).Warn("Drift read failed, assuming LOW")
		return contracts.DriftLow
	}
	return level
}
