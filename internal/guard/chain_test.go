package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/dataset"
	"github.com/wonny/cortex/backend/internal/samples"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeKillSwitch struct{ enabled bool }

func (f *fakeKillSwitch) Enabled(ctx context.Context) bool { return f.enabled }

type fakeStats struct {
	stats *samples.EligibilityStats
	err   error
}

func (f *fakeStats) Stats(ctx context.Context, filter contracts.SampleFilter) (*samples.EligibilityStats, error) {
	return f.stats, f.err
}

type fakeHistory struct {
	last time.Time
	err  error
}

func (f *fakeHistory) LastTrainedAt(ctx context.Context, horizon contracts.Horizon) (time.Time, error) {
	return f.last, f.err
}

type fakeSchema struct {
	hash string
	err  error
}

func (f *fakeSchema) LatestSchemaHash(ctx context.Context, horizon contracts.Horizon) (string, error) {
	return f.hash, f.err
}

type fakeBlocks struct {
	count int
	err   error
}

func (f *fakeBlocks) CountSince(ctx context.Context, horizon contracts.Horizon, eventType contracts.AuditEventType, since time.Time) (int, error) {
	return f.count, f.err
}

type fakeDrift struct {
	level contracts.DriftLevel
	err   error
}

func (f *fakeDrift) CurrentLevel(ctx context.Context, horizon contracts.Horizon) (contracts.DriftLevel, error) {
	return f.level, f.err
}

type capturingAudit struct {
	entries []contracts.AuditLogEntry
}

func (c *capturingAudit) Record(ctx context.Context, entry contracts.AuditLogEntry) {
	c.entries = append(c.entries, entry)
}

// fixture holds the chain plus every fake so tests can flip one knob
type fixture struct {
	chain      *Chain
	killSwitch *fakeKillSwitch
	stats      *fakeStats
	history    *fakeHistory
	schema     *fakeSchema
	blocks     *fakeBlocks
	drift      *fakeDrift
	audit      *capturingAudit
}

func currentSchemaHash() string {
	return dataset.SchemaHash(dataset.FeatureNames(dataset.BuildFeatures(contracts.Sample{})))
}

// newPassingFixture builds a chain where every check passes
func newPassingFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		killSwitch: &fakeKillSwitch{enabled: false},
		stats: &fakeStats{stats: &samples.EligibilityStats{
			Total:      250,
			LiveCount:  100,
			LiveShare:  0.4,
			AvgQuality: 0.8,
		}},
		history: &fakeHistory{last: time.Now().Add(-8 * 24 * time.Hour)},
		schema:  &fakeSchema{hash: currentSchemaHash()},
		blocks:  &fakeBlocks{count: 0},
		drift:   &fakeDrift{level: contracts.DriftLow},
		audit:   &capturingAudit{},
	}

	cfg := &config.LifecycleConfig{
		RetrainCooldown:   7 * 24 * time.Hour,
		MinSamples:        200,
		MaxDriftLevel:     "MEDIUM",
		MinLiveShare:      0.20,
		MinQualityScore:   0.60,
		MaxBlockedWindows: 3,
	}

	f.chain = NewChain(
		f.killSwitch, f.stats, f.history, f.schema, f.blocks, f.drift,
		f.audit,
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		cfg,
		logger.NewNop(),
	)
	return f
}

func failingCheck(snapshot contracts.GuardSnapshot, name contracts.GuardCheckName) *contracts.GuardCheckResult {
	for i := range snapshot.Checks {
		if snapshot.Checks[i].Name == name {
			return &snapshot.Checks[i]
		}
	}
	return nil
}

// =============================================================================
// Tests
// =============================================================================

func TestCanRetrainAllChecksPass(t *testing.T) {
	f := newPassingFixture(t)

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	assert.True(t, snapshot.OverallPass)
	assert.Len(t, snapshot.Checks, 8)
	assert.Empty(t, snapshot.BlockReasons)
	assert.Empty(t, f.audit.entries, "passing run must not write audit entries")
}

func TestCanRetrainKillSwitchBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.killSwitch.enabled = true

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	assert.False(t, snapshot.OverallPass)
	check := failingCheck(snapshot, contracts.GuardKillSwitch)
	require.NotNil(t, check)
	assert.False(t, check.Passed)
	assert.Equal(t, []contracts.GuardCheckName{contracts.GuardKillSwitch}, snapshot.FailingChecks())
}

func TestCanRetrainCooldownBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.history.last = time.Now().Add(-2 * time.Hour)

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	assert.False(t, snapshot.OverallPass)
	check := failingCheck(snapshot, contracts.GuardCooldown)
	require.NotNil(t, check)
	assert.Contains(t, check.Reason, "cooldown not elapsed")
}

func TestCanRetrainFirstTrainSkipsCooldown(t *testing.T) {
	f := newPassingFixture(t)
	f.history.last = time.Time{}

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	assert.True(t, snapshot.OverallPass)
}

func TestCanRetrainMinSamplesBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.stats.stats.Total = 150

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	check := failingCheck(snapshot, contracts.GuardMinSamples)
	require.NotNil(t, check)
	assert.Contains(t, check.Reason, "insufficient samples: 150 < 200")
}

func TestCanRetrainDriftCeilingBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.drift.level = contracts.DriftHigh

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	check := failingCheck(snapshot, contracts.GuardDriftCeiling)
	require.NotNil(t, check)
	assert.Contains(t, check.Reason, "above ceiling")
}

func TestCanRetrainLiveShareBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.stats.stats.LiveShare = 0.1

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	check := failingCheck(snapshot, contracts.GuardLiveShare)
	require.NotNil(t, check)
	assert.False(t, check.Passed)
}

func TestCanRetrainQualityBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.stats.stats.AvgQuality = 0.4

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	check := failingCheck(snapshot, contracts.GuardQualityScore)
	require.NotNil(t, check)
	assert.False(t, check.Passed)
}

func TestCanRetrainSchemaChangeBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.schema.hash = "deadbeefdeadbeefdeadbeef"

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	check := failingCheck(snapshot, contracts.GuardSchemaStable)
	require.NotNil(t, check)
	assert.Contains(t, check.Reason, "feature schema changed")
}

func TestCanRetrainNoPreviousSchemaPasses(t *testing.T) {
	f := newPassingFixture(t)
	f.schema.hash = ""

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	assert.True(t, snapshot.OverallPass)
}

func TestCanRetrainBacklogBlocks(t *testing.T) {
	f := newPassingFixture(t)
	f.blocks.count = 5

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	check := failingCheck(snapshot, contracts.GuardIngestBacklog)
	require.NotNil(t, check)
	assert.Contains(t, check.Reason, "recently blocked windows")
}

func TestCanRetrainCheckErrorIsLocalDeny(t *testing.T) {
	f := newPassingFixture(t)
	f.drift.err = errors.New("redis unreachable")

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	assert.False(t, snapshot.OverallPass)
	check := failingCheck(snapshot, contracts.GuardDriftCeiling)
	require.NotNil(t, check)
	assert.Contains(t, check.Reason, "redis unreachable")

	// 다른 체크는 영향받지 않음
	for _, other := range snapshot.Checks {
		if other.Name != contracts.GuardDriftCeiling {
			assert.True(t, other.Passed, "check %s must not be affected", other.Name)
		}
	}
}

type panickingDrift struct{}

func (panickingDrift) CurrentLevel(ctx context.Context, horizon contracts.Horizon) (contracts.DriftLevel, error) {
	panic("drift source exploded")
}

func TestCanRetrainCheckPanicIsContained(t *testing.T) {
	f := newPassingFixture(t)
	f.chain.drift = panickingDrift{}

	var snapshot contracts.GuardSnapshot
	assert.NotPanics(t, func() {
		snapshot = f.chain.CanRetrain(context.Background(), contracts.Horizon7D)
	})

	check := failingCheck(snapshot, contracts.GuardDriftCeiling)
	require.NotNil(t, check)
	assert.Contains(t, check.Reason, "check panicked")
}

func TestCanRetrainOverallPassIsANDOfChecks(t *testing.T) {
	f := newPassingFixture(t)
	f.killSwitch.enabled = true
	f.stats.stats.Total = 10
	f.blocks.count = 10

	snapshot := f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	assert.False(t, snapshot.OverallPass)
	assert.Len(t, snapshot.BlockReasons, 3)
	assert.ElementsMatch(t,
		[]contracts.GuardCheckName{contracts.GuardKillSwitch, contracts.GuardMinSamples, contracts.GuardIngestBacklog},
		snapshot.FailingChecks(),
	)
}

func TestCanRetrainBlockedSnapshotIsAudited(t *testing.T) {
	f := newPassingFixture(t)
	f.killSwitch.enabled = true

	f.chain.CanRetrain(context.Background(), contracts.Horizon7D)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, contracts.AuditGuardBlocked, entry.EventType)
	assert.Equal(t, contracts.AuditWarning, entry.Severity)
}
