package contracts

import "time"

// GuardCheckName names one of the eight retrain pre-conditions
type GuardCheckName string

const (
	GuardKillSwitch    GuardCheckName = "kill_switch"
	GuardCooldown      GuardCheckName = "cooldown"
	GuardMinSamples    GuardCheckName = "min_samples"
	GuardDriftCeiling  GuardCheckName = "drift_ceiling"
	GuardLiveShare     GuardCheckName = "live_share"
	GuardQualityScore  GuardCheckName = "quality_score"
	GuardSchemaStable  GuardCheckName = "schema_stable"
	GuardIngestBacklog GuardCheckName = "ingest_backlog"
)

// GuardCheckResult is the outcome of a single guard check
type GuardCheckResult struct {
	Name   GuardCheckName `json:"name"`
	Passed bool           `json:"passed"`
	Reason string         `json:"reason,omitempty"` // 실패 시 사람이 읽을 수 있는 원인
}

// GuardSnapshot is the ephemeral result of one guard chain run.
// 파이프라인 진입만 게이트하고 상태 전환은 기록하지 않음
type GuardSnapshot struct {
	Timestamp    time.Time          `json:"timestamp"`
	Horizon      Horizon            `json:"horizon"`
	Checks       []GuardCheckResult `json:"checks"`
	OverallPass  bool               `json:"overall_pass"`
	BlockReasons []string           `json:"block_reasons"`
}

// FailingChecks returns the names of all failed checks
func (g *GuardSnapshot) FailingChecks() []GuardCheckName {
	var failing []GuardCheckName
	for _, check := range g.Checks {
		if !check.Passed {
			failing = append(failing, check.Name)
		}
	}
	return failing
}
