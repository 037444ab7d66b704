package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Feature Construction
// =============================================================================

// modelFeatureKeys is the closed feature vocabulary the classifier sees.
// 순서는 항상 정렬된 키 순 — 위치 기반 접근 금지
var modelFeatureKeys = []string{
	contracts.FeatureActorReputation,
	contracts.FeatureCompositeScore,
	contracts.FeatureMentionVelocity,
	contracts.FeatureSignalStrength,
	contracts.FeatureSourceDiversity,
}

// BuildFeatures derives the model feature vector from a raw sample.
// ⭐ 순수 결정적 함수여야 함: 현재 시각, 난수, 외부 조회 일절 금지
// (스키마 해시 재현성과 누수 방지가 여기에 걸려 있음)
func BuildFeatures(s contracts.Sample) map[string]float64 {
	out := make(map[string]float64, len(modelFeatureKeys))

	for _, key := range modelFeatureKeys {
		raw := s.Features[key] // 없는 키는 0
		out[key] = clamp01(raw)
	}

	// 파생 피처도 표본 자체에서만 계산
	out["quality_score"] = clamp01(s.QualityScore)
	out["score_strength_ratio"] = safeRatio(
		s.Features[contracts.FeatureCompositeScore],
		s.Features[contracts.FeatureSignalStrength],
	)

	return out
}

// FeatureNames returns the canonical (sorted) feature key order
func FeatureNames(features map[string]float64) []string {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vectorize flattens a feature map into the canonical order
func Vectorize(features map[string]float64, names []string) []float64 {
	vec := make([]float64, len(names))
	for i, name := range names {
		vec[i] = features[name]
	}
	return vec
}

// SchemaHash hashes the canonical feature key list.
// 같은 논리적 피처 집합은 빌드 순서와 무관하게 같은 해시여야 함
func SchemaHash(featureNames []string) string {
	sorted := make([]string, len(featureNames))
	copy(sorted, featureNames)
	sort.Strings(sorted)

	jsonBytes, _ := json.Marshal(sorted)
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:])
}

// ContentHash hashes the canonicalized sample selection plus its filters.
// 같은 선택 + 같은 필터 = 같은 해시 (정렬로 순서 independence 보장)
func ContentHash(sampleIDs []string, filter contracts.SampleFilter) string {
	sorted := make([]string, len(sampleIDs))
	copy(sorted, sampleIDs)
	sort.Strings(sorted)

	payload := struct {
		SampleIDs []string               `json:"sample_ids"`
		Filter    contracts.SampleFilter `json:"filter"`
	}{
		SampleIDs: sorted,
		Filter:    filter,
	}

	jsonBytes, _ := json.Marshal(payload)
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:])
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func safeRatio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	ratio := num / den
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}
	// 비율 피처도 0-1 범위로 눌러줌
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}
