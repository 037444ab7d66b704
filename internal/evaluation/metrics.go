package evaluation

import (
	"math"
	"sort"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Metric Computation
// =============================================================================
// 룰 베이스라인 채점용 — 후보 모델의 지표는 compute 서비스가 보고

const calibrationBins = 10

// ComputeMetrics scores probabilistic predictions against binary labels.
// threshold는 이진 판정 경계 (보통 0.5)
func ComputeMetrics(probs []float64, labels []int, threshold float64) contracts.MetricSet {
	var tp, fp, tn, fn int
	for i, p := range probs {
		predicted := p >= threshold
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		default:
			tn++
		}
	}

	m := contracts.MetricSet{SampleCount: len(labels)}
	m.Precision = safeDiv(float64(tp), float64(tp+fp))
	m.Recall = safeDiv(float64(tp), float64(tp+fn))
	m.F1 = safeDiv(2*m.Precision*m.Recall, m.Precision+m.Recall)
	m.FalsePositiveRate = safeDiv(float64(fp), float64(fp+tn))
	m.FalseNegativeRate = safeDiv(float64(fn), float64(fn+tp))
	m.Coverage = safeDiv(float64(tp+fp), float64(len(labels)))
	m.PRAUC = prAUC(probs, labels)
	m.CalibrationECE = expectedCalibrationError(probs, labels)
	m.BrierScore = brierScore(probs, labels)
	return m
}

// prAUC computes average precision: 점수 내림차순으로 훑으며
// 각 양성 지점의 precision@k를 평균
func prAUC(probs []float64, labels []int) float64 {
	n := len(probs)
	if n == 0 {
		return 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})

	var tp, fp, positives int
	var sum float64
	for _, i := range order {
		if labels[i] == 1 {
			tp++
			positives++
			sum += float64(tp) / float64(tp+fp)
		} else {
			fp++
		}
	}
	if positives == 0 {
		return 0
	}
	return sum / float64(positives)
}

// expectedCalibrationError bins predictions and averages |confidence - accuracy|
func expectedCalibrationError(probs []float64, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}

	type bin struct {
		count     int
		sumProb   float64
		positives int
	}
	bins := make([]bin, calibrationBins)

	for i, p := range probs {
		idx := int(p * calibrationBins)
		if idx >= calibrationBins {
			idx = calibrationBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].count++
		bins[idx].sumProb += p
		if labels[i] == 1 {
			bins[idx].positives++
		}
	}

	var ece float64
	total := float64(len(probs))
	for _, b := range bins {
		if b.count == 0 {
			continue
		}
		avgConf := b.sumProb / float64(b.count)
		accuracy := float64(b.positives) / float64(b.count)
		ece += (float64(b.count) / total) * math.Abs(avgConf-accuracy)
	}
	return ece
}

func brierScore(probs []float64, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	var sum float64
	for i, p := range probs {
		diff := p - float64(labels[i])
		sum += diff * diff
	}
	return sum / float64(len(probs))
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
