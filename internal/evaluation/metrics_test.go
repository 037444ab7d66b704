package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/cortex/backend/internal/contracts"
)

func TestComputeMetricsPerfectClassifier(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.1, 0.2}
	labels := []int{1, 1, 0, 0}

	m := ComputeMetrics(probs, labels, 0.5)

	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
	assert.Equal(t, 0.0, m.FalsePositiveRate)
	assert.Equal(t, 0.0, m.FalseNegativeRate)
	assert.Equal(t, 4, m.SampleCount)
}

func TestComputeMetricsMixed(t *testing.T) {
	// TP=2, FP=1, FN=1, TN=1
	probs := []float64{0.9, 0.7, 0.6, 0.3, 0.2}
	labels := []int{1, 1, 0, 1, 0}

	m := ComputeMetrics(probs, labels, 0.5)

	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Recall, 1e-9)
	assert.InDelta(t, 0.5, m.FalsePositiveRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, m.FalseNegativeRate, 1e-9)
	assert.InDelta(t, 3.0/5.0, m.Coverage, 1e-9)
}

func TestComputeMetricsNoPositivePredictions(t *testing.T) {
	probs := []float64{0.1, 0.2, 0.3}
	labels := []int{1, 0, 1}

	m := ComputeMetrics(probs, labels, 0.5)

	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.Recall)
	assert.Equal(t, 0.0, m.Coverage)
}

func TestCalibrationErrorPerfectlyCalibrated(t *testing.T) {
	// 확률 0.5짜리 4건 중 정확히 절반이 양성
	probs := []float64{0.5, 0.5, 0.5, 0.5}
	labels := []int{1, 0, 1, 0}

	ece := expectedCalibrationError(probs, labels)

	assert.InDelta(t, 0.0, ece, 1e-9)
}

func TestCalibrationErrorOverconfident(t *testing.T) {
	// 0.95 확신에 전부 오답
	probs := []float64{0.95, 0.95}
	labels := []int{0, 0}

	ece := expectedCalibrationError(probs, labels)

	assert.InDelta(t, 0.95, ece, 1e-9)
}

func TestBrierScore(t *testing.T) {
	probs := []float64{1.0, 0.0}
	labels := []int{1, 0}
	assert.Equal(t, 0.0, brierScore(probs, labels))

	probs = []float64{0.0, 1.0}
	labels = []int{1, 0}
	assert.Equal(t, 1.0, brierScore(probs, labels))
}

func TestPRAUCRankedPerfectly(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.2, 0.1}
	labels := []int{1, 1, 0, 0}

	auc := prAUC(probs, labels)

	assert.InDelta(t, 1.0, auc, 0.05)
}

func TestRulesBaselineUsesCompositeScore(t *testing.T) {
	rows := []contracts.LabeledRow{
		{Features: map[string]float64{contracts.FeatureCompositeScore: 0.9}, Label: 1},
		{Features: map[string]float64{contracts.FeatureCompositeScore: 0.8}, Label: 1},
		{Features: map[string]float64{contracts.FeatureCompositeScore: 0.2}, Label: 0},
		{Features: map[string]float64{contracts.FeatureCompositeScore: 0.1}, Label: 0},
	}

	m := RulesBaseline(rows)

	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 4, m.SampleCount)
}

func TestRulesBaselineDeterministic(t *testing.T) {
	rows := []contracts.LabeledRow{
		{Features: map[string]float64{contracts.FeatureCompositeScore: 0.7}, Label: 1},
		{Features: map[string]float64{contracts.FeatureCompositeScore: 0.4}, Label: 0},
	}

	assert.Equal(t, RulesBaseline(rows), RulesBaseline(rows))
}
