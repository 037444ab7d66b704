package dataset

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/cortex/backend/internal/audit"
	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeSampleStore struct {
	samples []contracts.Sample
}

func (f *fakeSampleStore) QueryByFilter(ctx context.Context, filter contracts.SampleFilter) ([]contracts.Sample, error) {
	return f.samples, nil
}

func (f *fakeSampleStore) CountByFilter(ctx context.Context, filter contracts.SampleFilter) (int, error) {
	return len(f.samples), nil
}

type fakeVersionStore struct {
	frozen []*contracts.DatasetVersion
}

func (f *fakeVersionStore) InsertFrozen(ctx context.Context, v *contracts.DatasetVersion) error {
	f.frozen = append(f.frozen, v)
	return nil
}

func (f *fakeVersionStore) GetByHash(ctx context.Context, horizon contracts.Horizon, hash string) (*contracts.DatasetVersion, error) {
	for _, v := range f.frozen {
		if v.Horizon == horizon && v.ContentHash == hash {
			return v, nil
		}
	}
	return nil, nil
}

func testLifecycleConfig() *config.LifecycleConfig {
	return &config.LifecycleConfig{
		MinSamples:      10,
		MinQualityScore: 0.6,
		TrainSplitRatio: 0.8,
	}
}

func makeSamples(n int, start time.Time) []contracts.Sample {
	samples := make([]contracts.Sample, 0, n)
	for i := 0; i < n; i++ {
		outcome := contracts.OutcomeCorrect
		if i%3 == 0 {
			outcome = contracts.OutcomeIncorrect
		}
		samples = append(samples, contracts.Sample{
			ID:      fmt.Sprintf("sample-%03d", i),
			Horizon: contracts.Horizon7D,
			Features: map[string]float64{
				contracts.FeatureCompositeScore: 0.5,
				contracts.FeatureSignalStrength: 0.7,
			},
			Outcome:      outcome,
			QualityScore: 0.8,
			Source:       contracts.SampleSourceLive,
			SnapshotAt:   start.Add(time.Duration(i) * time.Hour),
		})
	}
	return samples
}

func newTestFramer(samples []contracts.Sample) (*Framer, *fakeVersionStore) {
	versions := &fakeVersionStore{}
	framer := NewFramer(
		&fakeSampleStore{samples: samples},
		versions,
		audit.NopRecorder{},
		testLifecycleConfig(),
		logger.NewNop(),
	)
	return framer, versions
}

// =============================================================================
// Tests
// =============================================================================

func TestFrameSplitRespectsTimeOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	framer, _ := newTestFramer(makeSamples(50, start))

	ds, err := framer.Frame(context.Background(), contracts.Horizon7D)
	require.NoError(t, err)

	require.NotEmpty(t, ds.Train)
	require.NotEmpty(t, ds.Eval)
	assert.NoError(t, ds.ValidateSplit())

	maxTrain := ds.Train[len(ds.Train)-1].Timestamp
	minEval := ds.Eval[0].Timestamp
	assert.True(t, maxTrain.Before(minEval), "train must end before eval begins")
}

func TestFrameAsymmetricWeights(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := makeSamples(20, start)
	samples[1].Outcome = contracts.OutcomeDelayedCorrect
	framer, _ := newTestFramer(samples)

	ds, err := framer.Frame(context.Background(), contracts.Horizon7D)
	require.NoError(t, err)

	all := append(append([]contracts.LabeledRow{}, ds.Train...), ds.Eval...)
	byID := make(map[string]contracts.LabeledRow, len(all))
	for _, row := range all {
		byID[row.SampleID] = row
	}

	for _, s := range samples {
		row, ok := byID[s.ID]
		require.True(t, ok)
		switch s.Outcome {
		case contracts.OutcomeCorrect:
			assert.Equal(t, 1, row.Label)
			assert.Equal(t, WeightCorrect, row.Weight)
		case contracts.OutcomeDelayedCorrect:
			assert.Equal(t, 1, row.Label)
			assert.Equal(t, WeightDelayedCorrect, row.Weight)
		case contracts.OutcomeIncorrect:
			assert.Equal(t, 0, row.Label)
			assert.Equal(t, WeightIncorrect, row.Weight)
		}
	}
}

func TestFrameDropsUnlabelableOutcomes(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := makeSamples(20, start)
	samples[2].Outcome = contracts.OutcomeAmbiguous
	samples[5].Outcome = contracts.OutcomeNonActionable
	framer, _ := newTestFramer(samples)

	ds, err := framer.Frame(context.Background(), contracts.Horizon7D)
	require.NoError(t, err)

	total := len(ds.Train) + len(ds.Eval)
	assert.Equal(t, 18, total)
	assert.Equal(t, 18, ds.Version.ClassDistribution.Total())
}

func TestFrameInsufficientSamples(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	framer, versions := newTestFramer(makeSamples(5, start))

	_, err := framer.Frame(context.Background(), contracts.Horizon7D)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient")
	assert.Empty(t, versions.frozen)
}

func TestFrameDegenerateDistribution(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := makeSamples(20, start)
	for i := range samples {
		samples[i].Outcome = contracts.OutcomeCorrect // 양성만 존재
	}
	framer, _ := newTestFramer(samples)

	_, err := framer.Frame(context.Background(), contracts.Horizon7D)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate")
}

func TestFrameIdempotentFreezing(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	framer, versions := newTestFramer(makeSamples(30, start))

	first, err := framer.Frame(context.Background(), contracts.Horizon7D)
	require.NoError(t, err)

	second, err := framer.Frame(context.Background(), contracts.Horizon7D)
	require.NoError(t, err)

	assert.Equal(t, first.Version.ID, second.Version.ID)
	assert.Len(t, versions.frozen, 1, "identical content must not create a second version")
}

func TestFrameBoundaryTimestampGoesToTrain(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]contracts.LabeledRow, 0, 10)
	for i := 0; i < 10; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		if i == 8 {
			ts = start.Add(7 * time.Hour) // 경계와 같은 타임스탬프
		}
		rows = append(rows, contracts.LabeledRow{
			SampleID:  string(rune('a' + i)),
			Label:     i % 2,
			Weight:    1.0,
			Timestamp: ts,
		})
	}

	train, eval := splitByTime(rows, 0.8)

	require.NotEmpty(t, eval)
	maxTrain := train[len(train)-1].Timestamp
	for _, row := range eval {
		assert.True(t, maxTrain.Before(row.Timestamp))
	}
}

func TestFrameDatasetIDDerivedFromHash(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	framer, _ := newTestFramer(makeSamples(30, start))

	ds, err := framer.Frame(context.Background(), contracts.Horizon7D)
	require.NoError(t, err)

	assert.Equal(t, "ds_7d_"+ds.Version.ContentHash[:12], ds.Version.ID)
	assert.Equal(t, contracts.DatasetFrozen, ds.Version.Status)
}
