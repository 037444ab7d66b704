package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/dataset"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
)

// =============================================================================
// Training Orchestrator
// =============================================================================
// ⭐ SSOT: 모델 생성은 여기서만 — 항상 status=CANDIDATE로 생성
// 베이스라인 비교는 절대 하지 않음 (그건 Evaluation Gate의 일)

// DatasetSource loads and consumes frozen dataset versions (의존성 역전)
type DatasetSource interface {
	GetByID(ctx context.Context, id string) (*contracts.DatasetVersion, error)
	MarkUsed(ctx context.Context, id string) error
}

// ModelStore persists trained model versions
type ModelStore interface {
	Insert(ctx context.Context, m *contracts.ModelVersion) error
}

// RowLoader rebuilds the labeled rows for a frozen dataset
type RowLoader interface {
	LoadRows(ctx context.Context, version *contracts.DatasetVersion) (*contracts.TrainingDataset, error)
}

// Orchestrator drives one training run against the compute service
type Orchestrator struct {
	datasets DatasetSource
	rows     RowLoader
	models   ModelStore
	compute  contracts.ComputeService
	audit    contracts.AuditSink
	metrics  *metrics.Recorder
	log      *logger.Logger
}

func NewOrchestrator(
	datasets DatasetSource,
	rows RowLoader,
	models ModelStore,
	compute contracts.ComputeService,
	audit contracts.AuditSink,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		datasets: datasets,
		rows:     rows,
		models:   models,
		compute:  compute,
		audit:    audit,
		metrics:  rec,
		log:      log.WithField("component", "training_orchestrator"),
	}
}

// Train runs one training call and persists the resulting CANDIDATE.
// 실패 시 ModelVersion은 절대 만들어지지 않고 TRAIN_FAILED 감사 이벤트만 남음
func (o *Orchestrator) Train(ctx context.Context, datasetVersionID string, horizon contracts.Horizon, algorithm string, hparams contracts.Hyperparameters) (*contracts.ModelVersion, error) {
	version, err := o.datasets.GetByID(ctx, datasetVersionID)
	if err != nil {
		return nil, o.failTrain(ctx, horizon, datasetVersionID, fmt.Errorf("load dataset version: %w", err))
	}
	if version == nil {
		return nil, o.failTrain(ctx, horizon, datasetVersionID, fmt.Errorf("dataset version %s not found", datasetVersionID))
	}
	if version.Horizon != horizon {
		return nil, o.failTrain(ctx, horizon, datasetVersionID,
			fmt.Errorf("dataset horizon %s does not match requested %s", version.Horizon, horizon))
	}
	if version.Status != contracts.DatasetFrozen {
		return nil, o.failTrain(ctx, horizon, datasetVersionID,
			fmt.Errorf("dataset %s is %s, expected FROZEN", version.ID, version.Status))
	}

	ds, err := o.rows.LoadRows(ctx, version)
	if err != nil {
		return nil, o.failTrain(ctx, horizon, datasetVersionID, fmt.Errorf("load dataset rows: %w", err))
	}
	if err := ds.ValidateSplit(); err != nil {
		return nil, o.failTrain(ctx, horizon, datasetVersionID, err)
	}

	req := buildTrainRequest(ds, horizon, algorithm, hparams)

	o.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:        contracts.AuditTrainStarted,
		Horizon:          horizon,
		DatasetVersionID: version.ID,
		TriggeredBy:      "system",
		Details: map[string]interface{}{
			"algorithm":     algorithm,
			"train_samples": len(ds.Train),
			"eval_samples":  len(ds.Eval),
		},
	})

	start := time.Now()
	resp, err := o.compute.Train(ctx, req)
	if err != nil {
		o.metrics.RecordTrainRun(string(horizon), false)
		return nil, o.failTrain(ctx, horizon, datasetVersionID, fmt.Errorf("compute train call: %w", err))
	}

	model := &contracts.ModelVersion{
		ID:                fmt.Sprintf("mv_%s_%s", horizon, uuid.New().String()[:8]),
		Horizon:           horizon,
		DatasetVersionID:  version.ID,
		FeatureSchemaHash: version.FeatureSchemaHash,
		Algorithm:         algorithm,
		Hyperparameters:   hparams,
		TrainMetrics:      resp.Metrics,
		ArtifactRef:       resp.ArtifactPath,
		ArtifactHash:      resp.ArtifactHash,
		Status:            contracts.ModelCandidate,
		TrainedAt:         time.Now(),
	}

	if err := o.models.Insert(ctx, model); err != nil {
		o.metrics.RecordTrainRun(string(horizon), false)
		return nil, o.failTrain(ctx, horizon, datasetVersionID, fmt.Errorf("persist model version: %w", err))
	}

	// FROZEN → USED. 실패해도 모델 생성 자체는 유효 (다음 동결에서 정리됨)
	if err := o.datasets.MarkUsed(ctx, version.ID); err != nil {
		o.log.WithError(err).WithField("dataset_id", version.ID).Warn("Failed to mark dataset USED")
	}

	o.metrics.RecordTrainRun(string(horizon), true)
	o.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:        contracts.AuditTrainFinished,
		Horizon:          horizon,
		DatasetVersionID: version.ID,
		ModelVersionID:   model.ID,
		TriggeredBy:      "system",
		Details: map[string]interface{}{
			"train_precision": resp.Metrics.Precision,
			"train_recall":    resp.Metrics.Recall,
			"duration_ms":     time.Since(start).Milliseconds(),
		},
	})

	o.log.WithFields(map[string]interface{}{
		"model_id":   model.ID,
		"dataset_id": version.ID,
		"horizon":    string(horizon),
	}).Info("Candidate model trained")

	return model, nil
}

// failTrain audits the failure and returns the error unchanged
func (o *Orchestrator) failTrain(ctx context.Context, horizon contracts.Horizon, datasetVersionID string, cause error) error {
	o.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:        contracts.AuditTrainFailed,
		Horizon:          horizon,
		DatasetVersionID: datasetVersionID,
		TriggeredBy:      "system",
		Severity:         contracts.AuditWarning,
		Details: map[string]interface{}{
			"error": cause.Error(),
		},
	})
	o.log.WithError(cause).WithField("horizon", string(horizon)).Error("Training run failed")
	return cause
}

// buildTrainRequest flattens the labeled rows into the wire format.
// 클래스 가중치는 라벨 분포의 역수 비율 (불균형 보정)
func buildTrainRequest(ds *contracts.TrainingDataset, horizon contracts.Horizon, algorithm string, hparams contracts.Hyperparameters) contracts.TrainRequest {
	names := dataset.FeatureNames(ds.Train[0].Features)

	xTrain := make([][]float64, len(ds.Train))
	yTrain := make([]int, len(ds.Train))
	weights := make([]float64, len(ds.Train))
	var positives, negatives int
	for i, row := range ds.Train {
		xTrain[i] = dataset.Vectorize(row.Features, names)
		yTrain[i] = row.Label
		weights[i] = row.Weight
		if row.Label == 1 {
			positives++
		} else {
			negatives++
		}
	}

	xEval := make([][]float64, len(ds.Eval))
	yEval := make([]int, len(ds.Eval))
	for i, row := range ds.Eval {
		xEval[i] = dataset.Vectorize(row.Features, names)
		yEval[i] = row.Label
	}

	total := float64(positives + negatives)
	classWeights := map[string]float64{"0": 1.0, "1": 1.0}
	if positives > 0 && negatives > 0 {
		classWeights["0"] = total / (2 * float64(negatives))
		classWeights["1"] = total / (2 * float64(positives))
	}

	return contracts.TrainRequest{
		XTrain:          xTrain,
		YTrain:          yTrain,
		Weights:         weights,
		XEval:           xEval,
		YEval:           yEval,
		FeatureNames:    names,
		Horizon:         horizon,
		Algorithm:       algorithm,
		Hyperparameters: hparams,
		ClassWeights:    classWeights,
	}
}
