package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/cortex/backend/internal/contracts"
)

func sampleWithFeatures(features map[string]float64) contracts.Sample {
	return contracts.Sample{
		ID:           "s1",
		Horizon:      contracts.Horizon7D,
		Features:     features,
		Outcome:      contracts.OutcomeCorrect,
		QualityScore: 0.9,
		Source:       contracts.SampleSourceLive,
		SnapshotAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildFeaturesDeterministic(t *testing.T) {
	s := sampleWithFeatures(map[string]float64{
		contracts.FeatureCompositeScore: 0.7,
		contracts.FeatureSignalStrength: 0.8,
	})

	first := BuildFeatures(s)
	second := BuildFeatures(s)

	assert.Equal(t, first, second)
}

func TestBuildFeaturesMissingKeysZeroFilled(t *testing.T) {
	s := sampleWithFeatures(map[string]float64{
		contracts.FeatureCompositeScore: 0.5,
	})

	features := BuildFeatures(s)

	assert.Equal(t, 0.0, features[contracts.FeatureMentionVelocity])
	assert.Equal(t, 0.0, features[contracts.FeatureActorReputation])
	assert.Equal(t, 0.5, features[contracts.FeatureCompositeScore])
}

func TestBuildFeaturesClampsOutOfRange(t *testing.T) {
	s := sampleWithFeatures(map[string]float64{
		contracts.FeatureCompositeScore: 3.5,
		contracts.FeatureSignalStrength: -1.0,
	})

	features := BuildFeatures(s)

	assert.Equal(t, 1.0, features[contracts.FeatureCompositeScore])
	assert.Equal(t, 0.0, features[contracts.FeatureSignalStrength])
}

func TestSchemaHashOrderIndependent(t *testing.T) {
	a := SchemaHash([]string{"alpha", "beta", "gamma"})
	b := SchemaHash([]string{"gamma", "alpha", "beta"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, SchemaHash([]string{"alpha", "beta"}))
}

func TestContentHashOrderIndependent(t *testing.T) {
	filter := contracts.SampleFilter{Horizon: contracts.Horizon7D, MinQuality: 0.6, OnlyResolved: true}

	a := ContentHash([]string{"s1", "s2", "s3"}, filter)
	b := ContentHash([]string{"s3", "s1", "s2"}, filter)

	assert.Equal(t, a, b)
}

func TestContentHashChangesWithFilter(t *testing.T) {
	ids := []string{"s1", "s2"}
	base := contracts.SampleFilter{Horizon: contracts.Horizon7D, MinQuality: 0.6}
	tighter := contracts.SampleFilter{Horizon: contracts.Horizon7D, MinQuality: 0.8}

	assert.NotEqual(t, ContentHash(ids, base), ContentHash(ids, tighter))
}

func TestVectorizeFollowsNameOrder(t *testing.T) {
	features := map[string]float64{"b": 2, "a": 1, "c": 3}
	names := FeatureNames(features)

	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, []float64{1, 2, 3}, Vectorize(features, names))
}
