package evaluation

import (
	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Rules Baseline
// =============================================================================
// 후보 모델이 이겨야 하는 결정적 휴리스틱.
// 학습 파이프라인 이전의 룰 엔진 판정을 같은 평가 행 위에서 재현

// baselineThreshold is the fixed composite-score cut the rule engine uses
const baselineThreshold = 0.6

// RulesBaseline scores the eval rows with the fixed-threshold heuristic.
// 확률이 아니라 경계 근접도를 의사 확률로 사용 (캘리브레이션 지표도 채워짐)
func RulesBaseline(rows []contracts.LabeledRow) contracts.MetricSet {
	probs := make([]float64, len(rows))
	labels := make([]int, len(rows))

	for i, row := range rows {
		probs[i] = baselineScore(row.Features)
		labels[i] = row.Label
	}

	return ComputeMetrics(probs, labels, 0.5)
}

// baselineScore maps the composite score to a pseudo-probability
// centered on the rule threshold
func baselineScore(features map[string]float64) float64 {
	score := features[contracts.FeatureCompositeScore]
	// threshold에서 0.5가 되도록 선형 이동
	p := 0.5 + (score-baselineThreshold)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
