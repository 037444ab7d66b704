package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/dataset"
	"github.com/wonny/cortex/backend/internal/samples"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
)

// =============================================================================
// Guard Chain
// =============================================================================
// ⭐ SSOT: 재학습 진입 조건은 전부 여기 — 8개 독립 체크의 AND
// CanRetrain은 절대 에러를 반환하지 않음: 체크 내부 오류는 해당 체크의
// 지역 DENY로 변환됨

// backlogWindow bounds the "recently blocked" lookback for check 8
const backlogWindow = 72 * time.Hour

// SampleStats reads eligibility statistics for the sample pool (의존성 역전)
type SampleStats interface {
	Stats(ctx context.Context, filter contracts.SampleFilter) (*samples.EligibilityStats, error)
}

// RetrainHistory reports the last successful training time per horizon
type RetrainHistory interface {
	LastTrainedAt(ctx context.Context, horizon contracts.Horizon) (time.Time, error)
}

// SchemaSource reports the feature schema hash of the last frozen dataset
type SchemaSource interface {
	LatestSchemaHash(ctx context.Context, horizon contracts.Horizon) (string, error)
}

// BlockCounter counts recent audit events of a given type
type BlockCounter interface {
	CountSince(ctx context.Context, horizon contracts.Horizon, eventType contracts.AuditEventType, since time.Time) (int, error)
}

// Chain runs the eight retrain pre-condition checks
type Chain struct {
	killSwitch contracts.KillSwitch
	stats      SampleStats
	history    RetrainHistory
	schema     SchemaSource
	blocks     BlockCounter
	drift      contracts.DriftSource
	audit      contracts.AuditSink
	metrics    *metrics.Recorder
	cfg        *config.LifecycleConfig
	log        *logger.Logger
	now        func() time.Time // 테스트에서 주입
}

func NewChain(
	killSwitch contracts.KillSwitch,
	stats SampleStats,
	history RetrainHistory,
	schema SchemaSource,
	blocks BlockCounter,
	drift contracts.DriftSource,
	audit contracts.AuditSink,
	rec *metrics.Recorder,
	cfg *config.LifecycleConfig,
	log *logger.Logger,
) *Chain {
	return &Chain{
		killSwitch: killSwitch,
		stats:      stats,
		history:    history,
		schema:     schema,
		blocks:     blocks,
		drift:      drift,
		audit:      audit,
		metrics:    rec,
		cfg:        cfg,
		log:        log.WithField("component", "guard_chain"),
		now:        time.Now,
	}
}

// CanRetrain evaluates all eight checks and returns the snapshot.
// overallPass = 모든 체크의 AND, blockReasons = 실패한 체크 이름 + 원인
func (c *Chain) CanRetrain(ctx context.Context, horizon contracts.Horizon) contracts.GuardSnapshot {
	statsFilter := contracts.SampleFilter{
		Horizon:      horizon,
		OnlyResolved: true,
		// MinQuality 0: 평균 품질 체크는 필터링 전 풀을 봐야 함
	}

	snapshot := contracts.GuardSnapshot{
		Timestamp: c.now(),
		Horizon:   horizon,
	}

	checks := []struct {
		name contracts.GuardCheckName
		fn   func(ctx context.Context) (bool, string)
	}{
		{contracts.GuardKillSwitch, c.checkKillSwitch},
		{contracts.GuardCooldown, func(ctx context.Context) (bool, string) { return c.checkCooldown(ctx, horizon) }},
		{contracts.GuardMinSamples, func(ctx context.Context) (bool, string) { return c.checkMinSamples(ctx, statsFilter) }},
		{contracts.GuardDriftCeiling, func(ctx context.Context) (bool, string) { return c.checkDriftCeiling(ctx, horizon) }},
		{contracts.GuardLiveShare, func(ctx context.Context) (bool, string) { return c.checkLiveShare(ctx, statsFilter) }},
		{contracts.GuardQualityScore, func(ctx context.Context) (bool, string) { return c.checkQualityScore(ctx, statsFilter) }},
		{contracts.GuardSchemaStable, func(ctx context.Context) (bool, string) { return c.checkSchemaStable(ctx, horizon) }},
		{contracts.GuardIngestBacklog, func(ctx context.Context) (bool, string) { return c.checkIngestBacklog(ctx, horizon) }},
	}

	snapshot.OverallPass = true
	for _, check := range checks {
		result := c.runContained(ctx, check.name, check.fn)
		snapshot.Checks = append(snapshot.Checks, result)
		if !result.Passed {
			snapshot.OverallPass = false
			snapshot.BlockReasons = append(snapshot.BlockReasons,
				fmt.Sprintf("%s: %s", result.Name, result.Reason))
		}
		c.metrics.RecordGuardCheck(string(horizon), result.Passed)
	}

	if !snapshot.OverallPass {
		c.audit.Record(ctx, contracts.AuditLogEntry{
			EventType:   contracts.AuditGuardBlocked,
			Horizon:     horizon,
			TriggeredBy: "scheduler",
			Severity:    contracts.AuditWarning,
			Details: map[string]interface{}{
				"block_reasons": snapshot.BlockReasons,
			},
		})
		c.log.WithFields(map[string]interface{}{
			"horizon": string(horizon),
			"reasons": snapshot.BlockReasons,
		}).Warn("Retrain blocked by guard chain")
	}

	return snapshot
}

// runContained executes a check with full error/panic containment.
// 체크 내부 장애는 전파되지 않고 그 체크 하나의 DENY가 됨
func (c *Chain) runContained(ctx context.Context, name contracts.GuardCheckName, fn func(ctx context.Context) (bool, string)) (result contracts.GuardCheckResult) {
	result.Name = name

	defer func() {
		if r := recover(); r != nil {
			result.Passed = false
			result.Reason = fmt.Sprintf("check panicked: %v", r)
			c.log.WithField("check", string(name)).Errorf("Guard check panicked: %v", r)
		}
	}()

	passed, reason := fn(ctx)
	result.Passed = passed
	if !passed {
		result.Reason = reason
	}
	return result
}

func (c *Chain) checkKillSwitch(ctx context.Context) (bool, string) {
	if c.killSwitch.Enabled(ctx) {
		return false, "kill switch is enabled"
	}
	return true, ""
}

func (c *Chain) checkCooldown(ctx context.Context, horizon contracts.Horizon) (bool, string) {
	last, err := c.history.LastTrainedAt(ctx, horizon)
	if err != nil {
		return false, fmt.Sprintf("failed to read last train time: %v", err)
	}
	if last.IsZero() {
		return true, "" // 최초 학습은 쿨다운 없음
	}
	elapsed := c.now().Sub(last)
	if elapsed < c.cfg.RetrainCooldown {
		return false, fmt.Sprintf("cooldown not elapsed: %s since last train, need %s",
			elapsed.Round(time.Minute), c.cfg.RetrainCooldown)
	}
	return true, ""
}

func (c *Chain) checkMinSamples(ctx context.Context, filter contracts.SampleFilter) (bool, string) {
	stats, err := c.stats.Stats(ctx, filter)
	if err != nil {
		return false, fmt.Sprintf("failed to read sample stats: %v", err)
	}
	if stats.Total < c.cfg.MinSamples {
		return false, fmt.Sprintf("insufficient samples: %d < %d", stats.Total, c.cfg.MinSamples)
	}
	return true, ""
}

func (c *Chain) checkDriftCeiling(ctx context.Context, horizon contracts.Horizon) (bool, string) {
	level, err := c.drift.CurrentLevel(ctx, horizon)
	if err != nil {
		return false, fmt.Sprintf("failed to read drift level: %v", err)
	}
	ceiling := contracts.DriftLevel(c.cfg.MaxDriftLevel)
	if level.Above(ceiling) {
		return false, fmt.Sprintf("drift level %s above ceiling %s", level, ceiling)
	}
	return true, ""
}

func (c *Chain) checkLiveShare(ctx context.Context, filter contracts.SampleFilter) (bool, string) {
	stats, err := c.stats.Stats(ctx, filter)
	if err != nil {
		return false, fmt.Sprintf("failed to read sample stats: %v", err)
	}
	if stats.LiveShare < c.cfg.MinLiveShare {
		return false, fmt.Sprintf("live share %.2f below minimum %.2f", stats.LiveShare, c.cfg.MinLiveShare)
	}
	return true, ""
}

func (c *Chain) checkQualityScore(ctx context.Context, filter contracts.SampleFilter) (bool, string) {
	stats, err := c.stats.Stats(ctx, filter)
	if err != nil {
		return false, fmt.Sprintf("failed to read sample stats: %v", err)
	}
	if stats.AvgQuality < c.cfg.MinQualityScore {
		return false, fmt.Sprintf("average quality %.2f below minimum %.2f", stats.AvgQuality, c.cfg.MinQualityScore)
	}
	return true, ""
}

// checkSchemaStable compares the current feature schema hash against the
// last frozen dataset. 첫 동결 전에는 비교 대상이 없으므로 통과
func (c *Chain) checkSchemaStable(ctx context.Context, horizon contracts.Horizon) (bool, string) {
	previous, err := c.schema.LatestSchemaHash(ctx, horizon)
	if err != nil {
		return false, fmt.Sprintf("failed to read last schema hash: %v", err)
	}
	if previous == "" {
		return true, ""
	}

	current := dataset.SchemaHash(dataset.FeatureNames(dataset.BuildFeatures(contracts.Sample{})))
	if current != previous {
		return false, fmt.Sprintf("feature schema changed: %s != %s", current[:12], previous[:12])
	}
	return true, ""
}

func (c *Chain) checkIngestBacklog(ctx context.Context, horizon contracts.Horizon) (bool, string) {
	since := c.now().Add(-backlogWindow)
	blocked, err := c.blocks.CountSince(ctx, horizon, contracts.AuditGuardBlocked, since)
	if err != nil {
		return false, fmt.Sprintf("failed to count blocked windows: %v", err)
	}
	if blocked > c.cfg.MaxBlockedWindows {
		return false, fmt.Sprintf("too many recently blocked windows: %d > %d", blocked, c.cfg.MaxBlockedWindows)
	}
	return true, ""
}
