package contracts

import "time"

// Outcome is the resolved result of a past decision sample
// 레이블링은 확정된 결과만 사용: 미확정/비실행 분기는 가중치 0이 아니라 제외
type Outcome string

const (
	OutcomeCorrect        Outcome = "CORRECT"         // 판단이 맞았음
	OutcomeDelayedCorrect Outcome = "DELAYED_CORRECT" // 늦게 맞았음 (할인 가중치)
	OutcomeIncorrect      Outcome = "INCORRECT"       // 판단이 틀렸음
	OutcomeAmbiguous      Outcome = "AMBIGUOUS"       // 아직 판정 불가
	OutcomeNonActionable  Outcome = "NON_ACTIONABLE"  // 비실행 분기 (학습 제외)
)

// Feature keys the rules baseline and feature builder rely on by name.
// features[0] 같은 위치 기반 접근은 금지
const (
	FeatureCompositeScore  = "composite_score"
	FeatureSignalStrength  = "signal_strength"
	FeatureSourceDiversity = "source_diversity"
	FeatureMentionVelocity = "mention_velocity"
	FeatureActorReputation = "actor_reputation"
)

// SampleSource distinguishes live traffic from backfilled history
type SampleSource string

const (
	SampleSourceLive     SampleSource = "live"
	SampleSourceBackfill SampleSource = "backfill"
)

// Sample is one resolved decision outcome from the sample/feature store
type Sample struct {
	ID           string             `json:"id"`
	Horizon      Horizon            `json:"horizon"`
	Features     map[string]float64 `json:"features"`
	Outcome      Outcome            `json:"outcome"`
	QualityScore float64            `json:"quality_score"` // 0-1
	DriftLevel   DriftLevel         `json:"drift_level"`
	Source       SampleSource       `json:"source"`
	SnapshotAt   time.Time          `json:"snapshot_at"`
}

// Labelable reports whether the sample participates in training at all
func (s Sample) Labelable() bool {
	switch s.Outcome {
	case OutcomeCorrect, OutcomeDelayedCorrect, OutcomeIncorrect:
		return true
	default:
		return false
	}
}

// SampleFilter is the query shape the sample store understands
type SampleFilter struct {
	Horizon      Horizon   `json:"horizon"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	MinQuality   float64   `json:"min_quality"`
	OnlyResolved bool      `json:"only_resolved"`
}
