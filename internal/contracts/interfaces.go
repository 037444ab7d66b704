package contracts

import (
	"context"
)

// SampleStore queries the sample/feature store (external collaborator)
// ⭐ SSOT: 표본 조회 인터페이스
type SampleStore interface {
	QueryByFilter(ctx context.Context, filter SampleFilter) ([]Sample, error)
	CountByFilter(ctx context.Context, filter SampleFilter) (int, error)
}

// ComputeService is the external stateless train/evaluate/predict service
// ⭐ SSOT: 수치 연산은 전부 외부 서비스에 위임 — 이 모듈은 제어만 담당
type ComputeService interface {
	Train(ctx context.Context, req TrainRequest) (*TrainResponse, error)
	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error)
	Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error)
}

// DriftSource reports the current drift level per horizon
type DriftSource interface {
	CurrentLevel(ctx context.Context, horizon Horizon) (DriftLevel, error)
}

// AuditSink records lifecycle events; implementations must never let a
// write failure propagate to the documented operation
type AuditSink interface {
	Record(ctx context.Context, entry AuditLogEntry)
}

// KillSwitch is the one cross-horizon shared state
type KillSwitch interface {
	Enabled(ctx context.Context) bool
}

// TrainRequest is the wire contract for POST /train
type TrainRequest struct {
	XTrain          [][]float64        `json:"X_train"`
	YTrain          []int              `json:"y_train"`
	Weights         []float64          `json:"weights"`
	XEval           [][]float64        `json:"X_eval"`
	YEval           []int              `json:"y_eval"`
	FeatureNames    []string           `json:"feature_names"`
	Horizon         Horizon            `json:"horizon"`
	Algorithm       string             `json:"algorithm"`
	Hyperparameters Hyperparameters    `json:"hyperparameters"`
	ClassWeights    map[string]float64 `json:"class_weights"`
}

// TrainResponse is the wire contract for the /train reply
type TrainResponse struct {
	Metrics      MetricSet `json:"metrics"`
	ArtifactPath string    `json:"artifact_path"`
	ArtifactHash string    `json:"artifact_hash"`
}

// EvaluateRequest is the wire contract for POST /evaluate
type EvaluateRequest struct {
	ModelID      string      `json:"model_id"`
	ArtifactPath string      `json:"artifact_path"`
	XEval        [][]float64 `json:"X_eval"`
	YEval        []int       `json:"y_eval"`
	FeatureNames []string    `json:"feature_names"`
	Horizon      Horizon     `json:"horizon"`
}

// EvaluateResponse is the wire contract for the /evaluate reply
type EvaluateResponse struct {
	Metrics MetricSet `json:"metrics"`
}

// PredictRequest is the wire contract for POST /predict
type PredictRequest struct {
	Features []map[string]float64 `json:"features"`
	Horizon  Horizon              `json:"horizon"`
}

// Prediction is one per-row prediction from the compute service
type Prediction struct {
	PSuccess float64 `json:"p_success"`
}

// PredictResponse is the wire contract for the /predict reply
type PredictResponse struct {
	Predictions []Prediction `json:"predictions"`
}
