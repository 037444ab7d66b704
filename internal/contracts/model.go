package contracts

import "time"

// ModelStatus is the lifecycle state of a model version
type ModelStatus string

const (
	ModelCandidate  ModelStatus = "CANDIDATE"   // 학습 완료, 평가 전
	ModelApproved   ModelStatus = "APPROVED"    // 평가 통과, 승격 가능
	ModelRejected   ModelStatus = "REJECTED"    // 평가 탈락 (종착 상태)
	ModelActive     ModelStatus = "ACTIVE"      // 현재 서빙 중
	ModelInactive   ModelStatus = "INACTIVE"    // 더 최신 모델로 교체됨
	ModelRolledBack ModelStatus = "ROLLED_BACK" // 롤백으로 내려감
)

// Valid reports whether the status is a known model state
func (s ModelStatus) Valid() bool {
	switch s {
	case ModelCandidate, ModelApproved, ModelRejected,
		ModelActive, ModelInactive, ModelRolledBack:
		return true
	default:
		return false
	}
}

// MetricSet is the common metric bundle reported for any scored split
type MetricSet struct {
	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	F1                float64 `json:"f1"`
	PRAUC             float64 `json:"pr_auc"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	FalseNegativeRate float64 `json:"false_negative_rate"`
	CalibrationECE    float64 `json:"calibration_ece"`
	BrierScore        float64 `json:"brier_score"`
	Coverage          float64 `json:"coverage"`
	SampleCount       int     `json:"sample_count"`
}

// Hyperparameters are passed through to the compute service untouched
type Hyperparameters map[string]interface{}

// PromotionRecord is one entry in a model's promotion history
type PromotionRecord struct {
	Action      string    `json:"action"` // promoted, demoted, rolled_back
	TriggeredBy string    `json:"triggered_by"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

// ModelVersion is one trained model; retraining always yields a new id
// ⭐ SSOT: 모델은 Training Orchestrator가 정확히 한 번 생성, 재학습 금지
type ModelVersion struct {
	ID                 string            `json:"id"`
	Horizon            Horizon           `json:"horizon"`
	DatasetVersionID   string            `json:"dataset_version_id"`
	FeatureSchemaHash  string            `json:"feature_schema_hash"`
	Algorithm          string            `json:"algorithm"`
	Hyperparameters    Hyperparameters   `json:"hyperparameters"`
	TrainMetrics       MetricSet         `json:"train_metrics"`
	EvalMetrics        *MetricSet        `json:"eval_metrics,omitempty"`
	EvaluationReportID string            `json:"evaluation_report_id,omitempty"`
	ArtifactRef        string            `json:"artifact_ref"`
	ArtifactHash       string            `json:"artifact_hash"`
	Status             ModelStatus       `json:"status"`
	TrainedAt          time.Time         `json:"trained_at"`
	PromotionHistory   []PromotionRecord `json:"promotion_history"`
}
