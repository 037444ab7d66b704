package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/dataset"
	"github.com/wonny/cortex/backend/internal/evaluation"
	"github.com/wonny/cortex/backend/internal/promotion"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// =============================================================================
// Shadow Health Monitor
// =============================================================================
// ⭐ SSOT: ACTIVE 모델의 실시간 건강 상태는 이 모니터만 판정
// 추론 경로와 완전히 독립 — 트레일링 윈도우 기반 사후 평가.
// 고립된 CRITICAL 한 번으로 롤백하지 않는다: 연속 카운터가 디바운스 역할

// Classification thresholds. 비교값은 퍼센트포인트(pp) 단위
const (
	criticalPrecisionDropPP = 10.0
	criticalFPRateRisePP    = 10.0
	criticalCalibration     = 0.15

	degradedPrecisionDropPP = 1.0
	degradedFPRateRisePP    = 2.0
	degradedCalibration     = 0.08
)

// recentScanLimit bounds the backward scan for the consecutive counter
const recentScanLimit = 20

// ModelSource reads model versions (의존성 역전)
type ModelSource interface {
	GetByID(ctx context.Context, id string) (*contracts.ModelVersion, error)
}

// PointerStore reads the serving pointer and records health transitions
type PointerStore interface {
	Get(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error)
	SetHealth(ctx context.Context, horizon contracts.Horizon, status contracts.HealthStatus) error
}

// ReportStore persists shadow reports and serves the backward scan
type ReportStore interface {
	Insert(ctx context.Context, report *contracts.ShadowMonitorReport) error
	Recent(ctx context.Context, horizon contracts.Horizon, modelID string, limit int) ([]contracts.ShadowMonitorReport, error)
}

// RollbackTrigger is the promotion service surface the monitor needs
type RollbackTrigger interface {
	Rollback(ctx context.Context, horizon contracts.Horizon, reason, triggeredBy string) *promotion.RollbackResult
}

// Monitor computes trailing-window health reports for the active model
type Monitor struct {
	samples  contracts.SampleStore
	compute  contracts.ComputeService
	models   ModelSource
	pointers PointerStore
	reports  ReportStore
	rollback RollbackTrigger
	audit    contracts.AuditSink
	cache    *redis.Cache
	metrics  *metrics.Recorder
	cfg      *config.LifecycleConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewMonitor(
	samples contracts.SampleStore,
	compute contracts.ComputeService,
	models ModelSource,
	pointers PointerStore,
	reports ReportStore,
	rollback RollbackTrigger,
	audit contracts.AuditSink,
	cache *redis.Cache,
	rec *metrics.Recorder,
	cfg *config.LifecycleConfig,
	log *logger.Logger,
) *Monitor {
	return &Monitor{
		samples:  samples,
		compute:  compute,
		models:   models,
		pointers: pointers,
		reports:  reports,
		rollback: rollback,
		audit:    audit,
		cache:    cache,
		metrics:  rec,
		cfg:      cfg,
		log:      log.WithField("component", "shadow_monitor"),
		now:      time.Now,
	}
}

// CheckHorizon produces one shadow report for the horizon's active model.
// ACTIVE 모델이 없으면 리포트 없이 (nil, nil) 반환.
// 연속 CRITICAL이 임계에 도달하면 자동 롤백을 발동한다
func (m *Monitor) CheckHorizon(ctx context.Context, horizon contracts.Horizon) (*contracts.ShadowMonitorReport, error) {
	pointer, err := m.pointers.Get(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("read active pointer: %w", err)
	}
	if !pointer.HasActive() {
		m.log.WithField("horizon", string(horizon)).Debug("No active model, skipping shadow check")
		return nil, nil
	}

	model, err := m.models.GetByID(ctx, pointer.ActiveModelID)
	if err != nil {
		return nil, fmt.Errorf("load active model %s: %w", pointer.ActiveModelID, err)
	}
	if model == nil {
		return nil, fmt.Errorf("active model %s not found", pointer.ActiveModelID)
	}

	windowEnd := m.now()
	windowStart := windowEnd.Add(-m.cfg.MonitorWindow)

	raw, err := m.samples.QueryByFilter(ctx, contracts.SampleFilter{
		Horizon:      horizon,
		From:         windowStart,
		To:           windowEnd,
		OnlyResolved: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query window samples: %w", err)
	}
	rows, _ := dataset.LabelSamples(raw)

	live, baseline, err := m.scoreWindow(ctx, model, rows)
	if err != nil {
		return nil, err
	}

	comparison := contracts.HealthComparison{
		PrecisionDropVsBaseline:  (baseline.Precision - live.Precision) * 100,
		FPRateIncreaseVsBaseline: (live.FalsePositiveRate - baseline.FalsePositiveRate) * 100,
	}

	decision, reasons := m.classify(comparison, live)

	prior, err := m.reports.Recent(ctx, horizon, model.ID, recentScanLimit)
	if err != nil {
		return nil, fmt.Errorf("scan recent reports: %w", err)
	}
	if len(prior) > 0 {
		comparison.PrecisionDeltaVsLast = (live.Precision - prior[0].Metrics.Precision) * 100
	}

	report := &contracts.ShadowMonitorReport{
		ID:                  fmt.Sprintf("sr_%s", uuid.New().String()[:12]),
		Horizon:             horizon,
		ModelID:             model.ID,
		Window:              m.cfg.MonitorWindow,
		Metrics:             live,
		Comparison:          comparison,
		Decision:            decision,
		Reasons:             reasons,
		ConsecutiveCritical: consecutiveCritical(decision, prior),
		WindowStart:         windowStart,
		WindowEnd:           windowEnd,
	}

	if report.ConsecutiveCritical >= m.cfg.ConsecutiveCritical {
		report.AutoRollbackTriggered = m.triggerRollback(ctx, horizon, report)
	}

	if err := m.reports.Insert(ctx, report); err != nil {
		return nil, fmt.Errorf("persist shadow report: %w", err)
	}

	m.applyHealth(ctx, pointer, report)
	m.metrics.RecordMonitorReport(string(horizon), string(decision))

	m.log.WithFields(map[string]interface{}{
		"horizon":              string(horizon),
		"model_id":             model.ID,
		"decision":             string(decision),
		"sample_count":         live.SampleCount,
		"consecutive_critical": report.ConsecutiveCritical,
		"auto_rollback":        report.AutoRollbackTriggered,
	}).Info("Shadow health report issued")

	return report, nil
}

// scoreWindow evaluates the active model and the rules baseline on the
// same window rows. 윈도우가 비면 compute 호출 없이 0 메트릭 반환
func (m *Monitor) scoreWindow(ctx context.Context, model *contracts.ModelVersion, rows []contracts.LabeledRow) (live, baseline contracts.MetricSet, err error) {
	if len(rows) == 0 {
		return contracts.MetricSet{}, contracts.MetricSet{}, nil
	}

	featureNames := dataset.FeatureNames(rows[0].Features)
	xEval := make([][]float64, len(rows))
	yEval := make([]int, len(rows))
	for i, row := range rows {
		xEval[i] = dataset.Vectorize(row.Features, featureNames)
		yEval[i] = row.Label
	}

	resp, err := m.compute.Evaluate(ctx, contracts.EvaluateRequest{
		ModelID:      model.ID,
		ArtifactPath: model.ArtifactRef,
		XEval:        xEval,
		YEval:        yEval,
		FeatureNames: featureNames,
		Horizon:      model.Horizon,
	})
	if err != nil {
		return contracts.MetricSet{}, contracts.MetricSet{}, fmt.Errorf("evaluate window: %w", err)
	}

	return resp.Metrics, evaluation.RulesBaseline(rows), nil
}

// classify maps window deltas to a health status, worst condition first.
// 표본 부족이면 무조건 DEGRADED — 증거 부족은 조용한 HEALTHY가 아니라 주의 상태
func (m *Monitor) classify(cmp contracts.HealthComparison, live contracts.MetricSet) (contracts.HealthStatus, []string) {
	if live.SampleCount < m.cfg.MonitorMinSamples {
		return contracts.HealthDegraded, []string{
			fmt.Sprintf("insufficient window samples: %d < %d", live.SampleCount, m.cfg.MonitorMinSamples),
		}
	}

	var critical []string
	if cmp.PrecisionDropVsBaseline >= criticalPrecisionDropPP {
		critical = append(critical, fmt.Sprintf("precision drop %.1fpp >= %.0fpp vs baseline", cmp.PrecisionDropVsBaseline, criticalPrecisionDropPP))
	}
	if cmp.FPRateIncreaseVsBaseline >= criticalFPRateRisePP {
		critical = append(critical, fmt.Sprintf("fp-rate increase %.1fpp >= %.0fpp vs baseline", cmp.FPRateIncreaseVsBaseline, criticalFPRateRisePP))
	}
	if live.CalibrationECE >= criticalCalibration {
		critical = append(critical, fmt.Sprintf("calibration error %.3f >= %.2f", live.CalibrationECE, criticalCalibration))
	}
	if len(critical) > 0 {
		return contracts.HealthCritical, critical
	}

	var degraded []string
	if cmp.PrecisionDropVsBaseline > degradedPrecisionDropPP {
		degraded = append(degraded, fmt.Sprintf("precision drop %.1fpp > %.0fpp vs baseline", cmp.PrecisionDropVsBaseline, degradedPrecisionDropPP))
	}
	if cmp.FPRateIncreaseVsBaseline > degradedFPRateRisePP {
		degraded = append(degraded, fmt.Sprintf("fp-rate increase %.1fpp > %.0fpp vs baseline", cmp.FPRateIncreaseVsBaseline, degradedFPRateRisePP))
	}
	if live.CalibrationECE > degradedCalibration {
		degraded = append(degraded, fmt.Sprintf("calibration error %.3f > %.2f", live.CalibrationECE, degradedCalibration))
	}
	if len(degraded) > 0 {
		return contracts.HealthDegraded, degraded
	}

	return contracts.HealthHealthy, nil
}

// consecutiveCritical counts backward from the newest report until a
// non-CRITICAL one breaks the run, then adds the current decision
func consecutiveCritical(current contracts.HealthStatus, prior []contracts.ShadowMonitorReport) int {
	if current != contracts.HealthCritical {
		return 0
	}
	count := 1
	for _, report := range prior {
		if report.Decision != contracts.HealthCritical {
			break
		}
		count++
	}
	return count
}

// triggerRollback fires the debounced circuit breaker.
// 롤백 실패는 리포트 발행을 막지 않는다 — 다음 주기에 재시도됨
func (m *Monitor) triggerRollback(ctx context.Context, horizon contracts.Horizon, report *contracts.ShadowMonitorReport) bool {
	reason := fmt.Sprintf("%d consecutive critical health reports (report %s)", report.ConsecutiveCritical, report.ID)
	result := m.rollback.Rollback(ctx, horizon, reason, "shadow_monitor")
	if !result.Success {
		m.log.WithFields(map[string]interface{}{
			"horizon": string(horizon),
			"reason":  result.Reason,
		}).Error("Auto-rollback failed")
		return false
	}

	m.log.WithFields(map[string]interface{}{
		"horizon":       string(horizon),
		"from_model_id": result.FromModelID,
		"to_model_id":   result.ToModelID,
		"report_id":     report.ID,
	}).Warn("Auto-rollback triggered by shadow monitor")
	return true
}

// applyHealth records the health transition on the pointer and cache,
// and audits only actual changes
func (m *Monitor) applyHealth(ctx context.Context, pointer *contracts.ActiveModelPointer, report *contracts.ShadowMonitorReport) {
	if err := m.pointers.SetHealth(ctx, report.Horizon, report.Decision); err != nil {
		m.log.WithError(err).WithField("horizon", string(report.Horizon)).Warn("Failed to persist health status")
	}
	if err := m.cache.Set(ctx, redis.HealthStatusKey(string(report.Horizon)), string(report.Decision), redis.TTLRealtime); err != nil {
		m.log.WithError(err).Warn("Failed to cache health status")
	}

	if pointer.HealthStatus == report.Decision {
		return
	}

	severity := contracts.AuditInfo
	if report.Decision == contracts.HealthCritical {
		severity = contracts.AuditWarning
	}
	m.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:      contracts.AuditHealthChanged,
		Horizon:        report.Horizon,
		ModelVersionID: report.ModelID,
		Details: map[string]interface{}{
			"from":      string(pointer.HealthStatus),
			"to":        string(report.Decision),
			"report_id": report.ID,
			"reasons":   report.Reasons,
		},
		TriggeredBy: "shadow_monitor",
		Severity:    severity,
	})
}
