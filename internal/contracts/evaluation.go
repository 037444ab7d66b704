package contracts

import "time"

// GateDecision is the advisory outcome recorded by the Evaluation Gate
// 게이트는 판단만 기록하고 모델 상태는 바꾸지 않음 — 상태 전환은 별도 단계
type GateDecision string

const (
	GateApproved     GateDecision = "APPROVED"
	GateRejected     GateDecision = "REJECTED"
	GateBlocked      GateDecision = "BLOCKED"      // 전제 조건 위반 (상태, 스키마 등)
	GateInconclusive GateDecision = "INCONCLUSIVE" // 평가 표본 부족
)

// GateThresholds is the threshold snapshot embedded in every report.
// 임계값이 나중에 바뀌어도 과거 리포트는 그대로 설명 가능해야 함
type GateThresholds struct {
	MinPrecisionLift  float64 `json:"min_precision_lift"`
	MaxCalibrationECE float64 `json:"max_calibration_ece"`
	MinEvalSamples    int     `json:"min_eval_samples"`
}

// MetricDeltas compares candidate metrics against a reference
type MetricDeltas struct {
	PrecisionDelta float64 `json:"precision_delta"`
	RecallDelta    float64 `json:"recall_delta"`
	F1Delta        float64 `json:"f1_delta"`
	PrecisionLift  float64 `json:"precision_lift"` // candidate / reference
}

// EvaluationReport is the immutable record of one gate run
type EvaluationReport struct {
	ID                   string         `json:"id"`
	CandidateModelID     string         `json:"candidate_model_id"`
	DatasetVersionID     string         `json:"dataset_version_id"`
	Horizon              Horizon        `json:"horizon"`
	CandidateMetrics     MetricSet      `json:"candidate_metrics"`
	RulesBaselineMetrics MetricSet      `json:"rules_baseline_metrics"`
	ActiveModelMetrics   *MetricSet     `json:"active_model_metrics,omitempty"`
	DeltasVsRules        MetricDeltas   `json:"deltas_vs_rules"`
	DeltasVsActive       *MetricDeltas  `json:"deltas_vs_active,omitempty"`
	Decision             GateDecision   `json:"decision"`
	Reasons              []string       `json:"reasons"`
	ThresholdsSnapshot   GateThresholds `json:"thresholds_snapshot"`
	EvaluatedAt          time.Time      `json:"evaluated_at"`
}
