package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeDatasets struct {
	version *contracts.DatasetVersion
	used    []string
	usedErr error
}

func (f *fakeDatasets) GetByID(ctx context.Context, id string) (*contracts.DatasetVersion, error) {
	if f.version != nil && f.version.ID == id {
		return f.version, nil
	}
	return nil, nil
}

func (f *fakeDatasets) MarkUsed(ctx context.Context, id string) error {
	if f.usedErr != nil {
		return f.usedErr
	}
	f.used = append(f.used, id)
	return nil
}

type fakeRows struct {
	ds  *contracts.TrainingDataset
	err error
}

func (f *fakeRows) LoadRows(ctx context.Context, version *contracts.DatasetVersion) (*contracts.TrainingDataset, error) {
	return f.ds, f.err
}

type fakeModels struct {
	inserted []*contracts.ModelVersion
	err      error
}

func (f *fakeModels) Insert(ctx context.Context, m *contracts.ModelVersion) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, m)
	return nil
}

type fakeCompute struct {
	trainResp *contracts.TrainResponse
	trainErr  error
	trainReqs []contracts.TrainRequest
}

func (f *fakeCompute) Train(ctx context.Context, req contracts.TrainRequest) (*contracts.TrainResponse, error) {
	f.trainReqs = append(f.trainReqs, req)
	return f.trainResp, f.trainErr
}

func (f *fakeCompute) Evaluate(ctx context.Context, req contracts.EvaluateRequest) (*contracts.EvaluateResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCompute) Predict(ctx context.Context, req contracts.PredictRequest) (*contracts.PredictResponse, error) {
	return nil, errors.New("not implemented")
}

type capturingAudit struct {
	entries []contracts.AuditLogEntry
}

func (c *capturingAudit) Record(ctx context.Context, entry contracts.AuditLogEntry) {
	c.entries = append(c.entries, entry)
}

func (c *capturingAudit) has(eventType contracts.AuditEventType) bool {
	for _, e := range c.entries {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

// =============================================================================
// Fixtures
// =============================================================================

func frozenVersion() *contracts.DatasetVersion {
	return &contracts.DatasetVersion{
		ID:                "ds_7d_abc123def456",
		Horizon:           contracts.Horizon7D,
		SampleIDs:         []string{"s1", "s2", "s3", "s4"},
		ContentHash:       "abc123def456",
		FeatureSchemaHash: "schema1",
		ClassDistribution: contracts.ClassDistribution{Positive: 3, Negative: 1},
		Status:            contracts.DatasetFrozen,
		FrozenAt:          time.Now(),
	}
}

func labeledDataset(version *contracts.DatasetVersion) *contracts.TrainingDataset {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	features := map[string]float64{"composite_score": 0.5, "quality_score": 0.8}
	mkRow := func(id string, label int, weight float64, offset int) contracts.LabeledRow {
		return contracts.LabeledRow{
			SampleID:  id,
			Features:  features,
			Label:     label,
			Weight:    weight,
			Timestamp: base.Add(time.Duration(offset) * time.Hour),
		}
	}
	return &contracts.TrainingDataset{
		Version: version,
		Train: []contracts.LabeledRow{
			mkRow("s1", 1, 1.0, 0),
			mkRow("s2", 0, 1.5, 1),
			mkRow("s3", 1, 0.8, 2),
		},
		Eval: []contracts.LabeledRow{
			mkRow("s4", 1, 1.0, 3),
		},
	}
}

type fixture struct {
	orch     *Orchestrator
	datasets *fakeDatasets
	rowsrc   *fakeRows
	models   *fakeModels
	compute  *fakeCompute
	audit    *capturingAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	version := frozenVersion()
	f := &fixture{
		datasets: &fakeDatasets{version: version},
		rowsrc:   &fakeRows{ds: labeledDataset(version)},
		models:   &fakeModels{},
		compute: &fakeCompute{trainResp: &contracts.TrainResponse{
			Metrics:      contracts.MetricSet{Precision: 0.7, Recall: 0.6, SampleCount: 3},
			ArtifactPath: "/artifacts/model.bin",
			ArtifactHash: "hash123",
		}},
		audit: &capturingAudit{},
	}
	f.orch = NewOrchestrator(
		f.datasets, f.rowsrc, f.models, f.compute, f.audit,
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		logger.NewNop(),
	)
	return f
}

// =============================================================================
// Tests
// =============================================================================

func TestTrainProducesCandidate(t *testing.T) {
	f := newFixture(t)

	model, err := f.orch.Train(context.Background(), "ds_7d_abc123def456", contracts.Horizon7D, "gbdt", contracts.Hyperparameters{"depth": 4})
	require.NoError(t, err)

	assert.Equal(t, contracts.ModelCandidate, model.Status)
	assert.Equal(t, "ds_7d_abc123def456", model.DatasetVersionID)
	assert.Equal(t, "schema1", model.FeatureSchemaHash)
	assert.Equal(t, "/artifacts/model.bin", model.ArtifactRef)
	assert.Equal(t, 0.7, model.TrainMetrics.Precision)
	assert.Nil(t, model.EvalMetrics, "orchestrator must never record eval metrics")

	require.Len(t, f.models.inserted, 1)
	assert.Equal(t, []string{"ds_7d_abc123def456"}, f.datasets.used)
	assert.True(t, f.audit.has(contracts.AuditTrainStarted))
	assert.True(t, f.audit.has(contracts.AuditTrainFinished))
}

func TestTrainClassWeightsFromDistribution(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Train(context.Background(), "ds_7d_abc123def456", contracts.Horizon7D, "gbdt", nil)
	require.NoError(t, err)

	require.Len(t, f.compute.trainReqs, 1)
	req := f.compute.trainReqs[0]

	// train split: 양성 2, 음성 1
	assert.InDelta(t, 3.0/(2*1.0), req.ClassWeights["0"], 1e-9)
	assert.InDelta(t, 3.0/(2*2.0), req.ClassWeights["1"], 1e-9)
	assert.Equal(t, []float64{1.0, 1.5, 0.8}, req.Weights)
	assert.Len(t, req.XTrain, 3)
	assert.Len(t, req.XEval, 1)
}

func TestTrainComputeFailureLeavesNoModel(t *testing.T) {
	f := newFixture(t)
	f.compute.trainResp = nil
	f.compute.trainErr = errors.New("compute service timeout")

	model, err := f.orch.Train(context.Background(), "ds_7d_abc123def456", contracts.Horizon7D, "gbdt", nil)

	assert.Error(t, err)
	assert.Nil(t, model)
	assert.Empty(t, f.models.inserted, "no partial model on failure")
	assert.Empty(t, f.datasets.used, "dataset must stay FROZEN on failure")
	assert.True(t, f.audit.has(contracts.AuditTrainFailed))
}

func TestTrainUnknownDataset(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Train(context.Background(), "ds_missing", contracts.Horizon7D, "gbdt", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.True(t, f.audit.has(contracts.AuditTrainFailed))
}

func TestTrainHorizonMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Train(context.Background(), "ds_7d_abc123def456", contracts.Horizon30D, "gbdt", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestTrainRejectsNonFrozenDataset(t *testing.T) {
	f := newFixture(t)
	f.datasets.version.Status = contracts.DatasetUsed

	_, err := f.orch.Train(context.Background(), "ds_7d_abc123def456", contracts.Horizon7D, "gbdt", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected FROZEN")
	assert.Empty(t, f.models.inserted)
}

func TestTrainRejectsLeakedSplit(t *testing.T) {
	f := newFixture(t)
	// eval 행을 train보다 이전 시각으로 오염
	f.rowsrc.ds.Eval[0].Timestamp = f.rowsrc.ds.Train[0].Timestamp.Add(-time.Hour)

	_, err := f.orch.Train(context.Background(), "ds_7d_abc123def456", contracts.Horizon7D, "gbdt", nil)

	assert.Error(t, err)
	assert.Empty(t, f.models.inserted)
	assert.True(t, f.audit.has(contracts.AuditTrainFailed))
}
