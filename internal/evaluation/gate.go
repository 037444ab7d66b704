package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/dataset"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// =============================================================================
// Evaluation Gate
// =============================================================================
// ⭐ SSOT: 후보 평가와 승인/탈락 판단 근거는 전부 여기
// Evaluate의 decision은 advisory — 상태 전환은 ApplyDecision의 명시적 단계

// ModelSource reads and transitions model versions (의존성 역전)
type ModelSource interface {
	GetByID(ctx context.Context, id string) (*contracts.ModelVersion, error)
	GetActive(ctx context.Context, horizon contracts.Horizon) (*contracts.ModelVersion, error)
	UpdateStatus(ctx context.Context, id string, from, to contracts.ModelStatus) error
	SetEvaluation(ctx context.Context, id string, metrics contracts.MetricSet, reportID string) error
}

// DatasetSource loads frozen dataset versions
type DatasetSource interface {
	GetByID(ctx context.Context, id string) (*contracts.DatasetVersion, error)
}

// RowLoader rebuilds labeled rows for a version
type RowLoader interface {
	LoadRows(ctx context.Context, version *contracts.DatasetVersion) (*contracts.TrainingDataset, error)
}

// ReportStore persists evaluation reports
type ReportStore interface {
	Insert(ctx context.Context, report *contracts.EvaluationReport) error
}

// Gate scores a CANDIDATE model against the rules baseline and the
// currently active model
type Gate struct {
	models   ModelSource
	datasets DatasetSource
	rows     RowLoader
	reports  ReportStore
	compute  contracts.ComputeService
	audit    contracts.AuditSink
	cfg      *config.LifecycleConfig
	log      *logger.Logger
}

func NewGate(
	models ModelSource,
	datasets DatasetSource,
	rows RowLoader,
	reports ReportStore,
	compute contracts.ComputeService,
	audit contracts.AuditSink,
	cfg *config.LifecycleConfig,
	log *logger.Logger,
) *Gate {
	return &Gate{
		models:   models,
		datasets: datasets,
		rows:     rows,
		reports:  reports,
		compute:  compute,
		audit:    audit,
		cfg:      cfg,
		log:      log.WithField("component", "evaluation_gate"),
	}
}

// Evaluate scores the candidate and records an advisory report.
// 모델 상태는 건드리지 않음
func (g *Gate) Evaluate(ctx context.Context, candidateModelID string) (*contracts.EvaluationReport, error) {
	model, err := g.models.GetByID(ctx, candidateModelID)
	if err != nil {
		return nil, fmt.Errorf("load candidate model: %w", err)
	}
	if model == nil {
		return nil, fmt.Errorf("model %s not found", candidateModelID)
	}
	if model.Status != contracts.ModelCandidate {
		return nil, fmt.Errorf("model %s is %s, expected CANDIDATE", model.ID, model.Status)
	}

	version, err := g.datasets.GetByID(ctx, model.DatasetVersionID)
	if err != nil {
		return nil, fmt.Errorf("load dataset version: %w", err)
	}
	if version == nil {
		return nil, fmt.Errorf("dataset version %s not found", model.DatasetVersionID)
	}
	if version.FeatureSchemaHash != model.FeatureSchemaHash {
		return nil, fmt.Errorf("schema mismatch between model %s and dataset %s", model.ID, version.ID)
	}

	ds, err := g.rows.LoadRows(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("load eval rows: %w", err)
	}

	names := dataset.FeatureNames(ds.Eval[0].Features)
	xEval := make([][]float64, len(ds.Eval))
	yEval := make([]int, len(ds.Eval))
	for i, row := range ds.Eval {
		xEval[i] = dataset.Vectorize(row.Features, names)
		yEval[i] = row.Label
	}

	resp, err := g.compute.Evaluate(ctx, contracts.EvaluateRequest{
		ModelID:      model.ID,
		ArtifactPath: model.ArtifactRef,
		XEval:        xEval,
		YEval:        yEval,
		FeatureNames: names,
		Horizon:      model.Horizon,
	})
	if err != nil {
		return nil, fmt.Errorf("compute evaluate call: %w", err)
	}

	report := g.buildReport(ctx, model, version, resp.Metrics, ds.Eval)

	if err := g.reports.Insert(ctx, report); err != nil {
		return nil, fmt.Errorf("persist evaluation report: %w", err)
	}
	if err := g.models.SetEvaluation(ctx, model.ID, resp.Metrics, report.ID); err != nil {
		return nil, fmt.Errorf("attach eval metrics: %w", err)
	}

	g.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:        contracts.AuditEvaluated,
		Horizon:          model.Horizon,
		DatasetVersionID: version.ID,
		ModelVersionID:   model.ID,
		TriggeredBy:      "system",
		Details: map[string]interface{}{
			"report_id":     report.ID,
			"decision":      string(report.Decision),
			"precision":     resp.Metrics.Precision,
			"lift_vs_rules": report.DeltasVsRules.PrecisionLift,
			"reasons":       report.Reasons,
		},
	})

	g.log.WithFields(map[string]interface{}{
		"model_id":  model.ID,
		"report_id": report.ID,
		"decision":  string(report.Decision),
	}).Info("Candidate evaluated")

	return report, nil
}

// buildReport computes baselines, deltas, and the advisory decision
func (g *Gate) buildReport(ctx context.Context, model *contracts.ModelVersion, version *contracts.DatasetVersion, candidate contracts.MetricSet, evalRows []contracts.LabeledRow) *contracts.EvaluationReport {
	thresholds := contracts.GateThresholds{
		MinPrecisionLift:  g.cfg.MinPrecisionLift,
		MaxCalibrationECE: g.cfg.MaxCalibrationECE,
		MinEvalSamples:    g.cfg.MinEvalSamples,
	}

	rules := RulesBaseline(evalRows)

	report := &contracts.EvaluationReport{
		ID:                   fmt.Sprintf("er_%s", uuid.New().String()[:12]),
		CandidateModelID:     model.ID,
		DatasetVersionID:     version.ID,
		Horizon:              model.Horizon,
		CandidateMetrics:     candidate,
		RulesBaselineMetrics: rules,
		DeltasVsRules:        deltas(candidate, rules),
		ThresholdsSnapshot:   thresholds,
		EvaluatedAt:          time.Now(),
	}

	// 현재 활성 모델이 있으면 마지막 평가 지표와 비교
	if active, err := g.models.GetActive(ctx, model.Horizon); err != nil {
		g.log.WithError(err).Warn("Failed to load active model for comparison")
	} else if active != nil && active.EvalMetrics != nil {
		report.ActiveModelMetrics = active.EvalMetrics
		d := deltas(candidate, *active.EvalMetrics)
		report.DeltasVsActive = &d
	}

	report.Decision, report.Reasons = g.decide(candidate, report.DeltasVsRules, len(evalRows), thresholds)
	return report
}

// decide applies the gate thresholds. 순서: 표본 수 → 정밀도 리프트 → 캘리브레이션
func (g *Gate) decide(candidate contracts.MetricSet, vsRules contracts.MetricDeltas, evalSamples int, th contracts.GateThresholds) (contracts.GateDecision, []string) {
	if evalSamples < th.MinEvalSamples {
		return contracts.GateInconclusive, []string{
			fmt.Sprintf("insufficient eval samples: %d < %d", evalSamples, th.MinEvalSamples),
		}
	}

	var reasons []string
	if vsRules.PrecisionLift < th.MinPrecisionLift {
		reasons = append(reasons, fmt.Sprintf("precision lift %.3f below minimum %.3f",
			vsRules.PrecisionLift, th.MinPrecisionLift))
	}
	if candidate.CalibrationECE > th.MaxCalibrationECE {
		reasons = append(reasons, fmt.Sprintf("calibration ECE %.3f above maximum %.3f",
			candidate.CalibrationECE, th.MaxCalibrationECE))
	}

	if len(reasons) > 0 {
		return contracts.GateRejected, reasons
	}
	return contracts.GateApproved, nil
}

// ApplyDecision flips the candidate to APPROVED or REJECTED per the report.
// Evaluate와 분리된 명시적 단계 — 리포트 없이 상태 전환 불가
func (g *Gate) ApplyDecision(ctx context.Context, report *contracts.EvaluationReport) error {
	switch report.Decision {
	case contracts.GateApproved:
		if err := g.models.UpdateStatus(ctx, report.CandidateModelID, contracts.ModelCandidate, contracts.ModelApproved); err != nil {
			return fmt.Errorf("approve model: %w", err)
		}
		g.auditDecision(ctx, report, contracts.AuditModelApproved)
		return nil

	case contracts.GateRejected:
		if err := g.models.UpdateStatus(ctx, report.CandidateModelID, contracts.ModelCandidate, contracts.ModelRejected); err != nil {
			return fmt.Errorf("reject model: %w", err)
		}
		g.auditDecision(ctx, report, contracts.AuditModelRejected)
		return nil

	default:
		// BLOCKED / INCONCLUSIVE는 CANDIDATE로 남김 (재평가 가능)
		return fmt.Errorf("report %s decision %s does not transition model state", report.ID, report.Decision)
	}
}

func (g *Gate) auditDecision(ctx context.Context, report *contracts.EvaluationReport, eventType contracts.AuditEventType) {
	g.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:      eventType,
		Horizon:        report.Horizon,
		ModelVersionID: report.CandidateModelID,
		TriggeredBy:    "system",
		Details: map[string]interface{}{
			"report_id": report.ID,
			"reasons":   report.Reasons,
		},
	})
}

// deltas computes candidate-minus-reference metric differences plus lift
func deltas(candidate, reference contracts.MetricSet) contracts.MetricDeltas {
	d := contracts.MetricDeltas{
		PrecisionDelta: candidate.Precision - reference.Precision,
		RecallDelta:    candidate.Recall - reference.Recall,
		F1Delta:        candidate.F1 - reference.F1,
	}
	if reference.Precision > 0 {
		d.PrecisionLift = candidate.Precision / reference.Precision
	}
	return d
}
