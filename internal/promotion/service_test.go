package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeModels struct {
	byID    map[string]*contracts.ModelVersion
	history map[string][]contracts.PromotionRecord
}

func newFakeModels(models ...*contracts.ModelVersion) *fakeModels {
	f := &fakeModels{
		byID:    map[string]*contracts.ModelVersion{},
		history: map[string][]contracts.PromotionRecord{},
	}
	for _, m := range models {
		f.byID[m.ID] = m
	}
	return f
}

func (f *fakeModels) GetByID(ctx context.Context, id string) (*contracts.ModelVersion, error) {
	return f.byID[id], nil
}

func (f *fakeModels) UpdateStatus(ctx context.Context, id string, from, to contracts.ModelStatus) error {
	m := f.byID[id]
	if m == nil {
		return errors.New("model not found")
	}
	if m.Status != from {
		return errors.New("status mismatch")
	}
	if err := contracts.ValidateTransition(from, to); err != nil {
		return err
	}
	m.Status = to
	return nil
}

func (f *fakeModels) AppendPromotionRecord(ctx context.Context, id string, record contracts.PromotionRecord) error {
	f.history[id] = append(f.history[id], record)
	return nil
}

type fakePointers struct {
	pointer  *contracts.ActiveModelPointer
	switches int
	swapErr  error
}

func (f *fakePointers) Get(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error) {
	copied := *f.pointer
	return &copied, nil
}

func (f *fakePointers) Swap(ctx context.Context, p *contracts.ActiveModelPointer, expectedVersion int64) error {
	if f.swapErr != nil {
		return f.swapErr
	}
	if f.pointer.Version != expectedVersion {
		return ErrPointerConflict
	}
	copied := *p
	copied.Version = expectedVersion + 1
	f.pointer = &copied
	return nil
}

func (f *fakePointers) CountSwitchesSince(ctx context.Context, horizon contracts.Horizon, since time.Time) (int, error) {
	return f.switches, nil
}

type fakeKillSwitch struct{ enabled bool }

func (f *fakeKillSwitch) Enabled(ctx context.Context) bool { return f.enabled }

type fakeDrift struct{ level contracts.DriftLevel }

func (f *fakeDrift) CurrentLevel(ctx context.Context, horizon contracts.Horizon) (contracts.DriftLevel, error) {
	return f.level, nil
}

type capturingAudit struct {
	entries []contracts.AuditLogEntry
}

func (c *capturingAudit) Record(ctx context.Context, entry contracts.AuditLogEntry) {
	c.entries = append(c.entries, entry)
}

func (c *capturingAudit) last() *contracts.AuditLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	return &c.entries[len(c.entries)-1]
}

// =============================================================================
// Fixtures
// =============================================================================

type fixture struct {
	svc        *Service
	models     *fakeModels
	pointers   *fakePointers
	killSwitch *fakeKillSwitch
	drift      *fakeDrift
	audit      *capturingAudit
}

func newFixture(t *testing.T, models ...*contracts.ModelVersion) *fixture {
	t.Helper()

	f := &fixture{
		models: newFakeModels(models...),
		pointers: &fakePointers{pointer: &contracts.ActiveModelPointer{
			Horizon:      contracts.Horizon7D,
			HealthStatus: contracts.HealthUnknown,
		}},
		killSwitch: &fakeKillSwitch{},
		drift:      &fakeDrift{level: contracts.DriftLow},
		audit:      &capturingAudit{},
	}

	cfg := &config.LifecycleConfig{
		PromotionCooldown:  24 * time.Hour,
		MaxPromotionsMonth: 4,
	}

	f.svc = NewService(
		f.models, f.pointers, f.killSwitch, f.drift, f.audit,
		redis.NewCache(redis.Disabled(), "test"),
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		cfg,
		logger.NewNop(),
	)
	return f
}

func approvedModel(id string) *contracts.ModelVersion {
	return &contracts.ModelVersion{
		ID:      id,
		Horizon: contracts.Horizon7D,
		Status:  contracts.ModelApproved,
	}
}

func activeModel(id string) *contracts.ModelVersion {
	return &contracts.ModelVersion{
		ID:      id,
		Horizon: contracts.Horizon7D,
		Status:  contracts.ModelActive,
	}
}

// =============================================================================
// Promote
// =============================================================================

func TestPromoteFirstModel(t *testing.T) {
	f := newFixture(t, approvedModel("m1"))

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", false)

	assert.Equal(t, "PROMOTED", result.Decision)
	assert.Empty(t, result.PreviousModelID)
	assert.Equal(t, contracts.ModelActive, f.models.byID["m1"].Status)
	assert.Equal(t, "m1", f.pointers.pointer.ActiveModelID)
	assert.Empty(t, f.pointers.pointer.PreviousModelID)
	assert.Equal(t, contracts.AuditPromoted, f.audit.last().EventType)
}

func TestPromoteReplacesActiveModel(t *testing.T) {
	f := newFixture(t, approvedModel("m2"), activeModel("m1"))
	f.pointers.pointer.ActiveModelID = "m1"
	f.pointers.pointer.SwitchedAt = time.Now().Add(-48 * time.Hour)

	result := f.svc.Promote(context.Background(), "m2", contracts.Horizon7D, "operator", false)

	assert.Equal(t, "PROMOTED", result.Decision)
	assert.Equal(t, "m1", result.PreviousModelID)
	assert.Equal(t, contracts.ModelInactive, f.models.byID["m1"].Status)
	assert.Equal(t, contracts.ModelActive, f.models.byID["m2"].Status)
	assert.Equal(t, "m2", f.pointers.pointer.ActiveModelID)
	assert.Equal(t, "m1", f.pointers.pointer.PreviousModelID)
}

func TestPromoteBlocksUnapprovedModel(t *testing.T) {
	f := newFixture(t, &contracts.ModelVersion{ID: "m1", Horizon: contracts.Horizon7D, Status: contracts.ModelCandidate})

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", false)

	assert.Equal(t, "BLOCKED", result.Decision)
	assert.Equal(t, []BlockReason{BlockModelNotApproved}, result.BlockedReasons)
	assert.Equal(t, contracts.ModelCandidate, f.models.byID["m1"].Status, "blocked promotion must not mutate state")
	assert.Equal(t, contracts.AuditPromotionBlocked, f.audit.last().EventType)
}

func TestPromoteBlocksUnknownModel(t *testing.T) {
	f := newFixture(t)

	result := f.svc.Promote(context.Background(), "missing", contracts.Horizon7D, "operator", false)

	assert.Equal(t, []BlockReason{BlockModelNotFound}, result.BlockedReasons)
}

func TestPromoteBlocksHorizonMismatch(t *testing.T) {
	f := newFixture(t, approvedModel("m1"))

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon30D, "operator", false)

	assert.Equal(t, []BlockReason{BlockHorizonMismatch}, result.BlockedReasons)
}

func TestPromoteBlocksOnKillSwitch(t *testing.T) {
	f := newFixture(t, approvedModel("m1"))
	f.killSwitch.enabled = true

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", false)

	assert.Equal(t, []BlockReason{BlockKillSwitch}, result.BlockedReasons)
}

func TestPromoteForceOverridesKillSwitch(t *testing.T) {
	f := newFixture(t, approvedModel("m1"))
	f.killSwitch.enabled = true

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", true)

	assert.Equal(t, "PROMOTED", result.Decision)
}

func TestPromoteBlocksOnCriticalDrift(t *testing.T) {
	f := newFixture(t, approvedModel("m1"))
	f.drift.level = contracts.DriftCritical

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", false)

	assert.Equal(t, []BlockReason{BlockDriftCritical}, result.BlockedReasons)
}

func TestPromoteBlocksDuringCooldown(t *testing.T) {
	f := newFixture(t, approvedModel("m2"), activeModel("m1"))
	f.pointers.pointer.ActiveModelID = "m1"
	f.pointers.pointer.SwitchedAt = time.Now().Add(-2 * time.Hour)

	result := f.svc.Promote(context.Background(), "m2", contracts.Horizon7D, "operator", false)

	assert.Equal(t, []BlockReason{BlockCooldown}, result.BlockedReasons)
	assert.Equal(t, contracts.ModelActive, f.models.byID["m1"].Status)
}

func TestPromoteBlocksOnMonthlyRateLimit(t *testing.T) {
	f := newFixture(t, approvedModel("m1"))
	f.pointers.switches = 4

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", false)

	assert.Equal(t, []BlockReason{BlockRateLimit}, result.BlockedReasons)
}

func TestPromoteShortCircuitsOnFirstFailure(t *testing.T) {
	// kill switch와 drift 모두 위반이지만 순서상 kill switch만 보고
	f := newFixture(t, approvedModel("m1"))
	f.killSwitch.enabled = true
	f.drift.level = contracts.DriftCritical

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", false)

	assert.Equal(t, []BlockReason{BlockKillSwitch}, result.BlockedReasons)
	assert.Len(t, result.BlockedReasons, 1)
}

func TestPromoteSwapConflictIsBlocked(t *testing.T) {
	f := newFixture(t, approvedModel("m1"))
	f.pointers.swapErr = ErrPointerConflict

	result := f.svc.Promote(context.Background(), "m1", contracts.Horizon7D, "operator", false)

	assert.Equal(t, "BLOCKED", result.Decision)
	assert.Equal(t, []BlockReason{BlockInternal}, result.BlockedReasons)
}

// =============================================================================
// Rollback
// =============================================================================

func TestRollbackRestoresPreviousModel(t *testing.T) {
	previous := &contracts.ModelVersion{ID: "m1", Horizon: contracts.Horizon7D, Status: contracts.ModelInactive}
	f := newFixture(t, previous, activeModel("m2"))
	f.pointers.pointer.ActiveModelID = "m2"
	f.pointers.pointer.PreviousModelID = "m1"

	result := f.svc.Rollback(context.Background(), contracts.Horizon7D, "precision collapsed", "shadow_monitor")

	assert.True(t, result.Success)
	assert.Equal(t, "m2", result.FromModelID)
	assert.Equal(t, "m1", result.ToModelID)
	assert.Equal(t, contracts.ModelRolledBack, f.models.byID["m2"].Status)
	assert.Equal(t, contracts.ModelActive, f.models.byID["m1"].Status)
	assert.Equal(t, "m1", f.pointers.pointer.ActiveModelID)
	assert.Empty(t, f.pointers.pointer.PreviousModelID)
	assert.Equal(t, 1, f.pointers.pointer.RollbackCount)
}

func TestRollbackWithNoPreviousModel(t *testing.T) {
	f := newFixture(t, activeModel("m1"))
	f.pointers.pointer.ActiveModelID = "m1"

	result := f.svc.Rollback(context.Background(), contracts.Horizon7D, "manual", "operator")

	assert.False(t, result.Success)
	assert.Equal(t, "no previous model", result.Reason)
	assert.Equal(t, contracts.ModelActive, f.models.byID["m1"].Status, "no-op rollback must not mutate state")
	assert.Equal(t, contracts.AuditRollbackNoop, f.audit.last().EventType)
}

func TestRollbackTwiceIsIdempotent(t *testing.T) {
	previous := &contracts.ModelVersion{ID: "m1", Horizon: contracts.Horizon7D, Status: contracts.ModelInactive}
	f := newFixture(t, previous, activeModel("m2"))
	f.pointers.pointer.ActiveModelID = "m2"
	f.pointers.pointer.PreviousModelID = "m1"

	first := f.svc.Rollback(context.Background(), contracts.Horizon7D, "degraded", "shadow_monitor")
	require.True(t, first.Success)

	second := f.svc.Rollback(context.Background(), contracts.Horizon7D, "degraded", "shadow_monitor")

	assert.False(t, second.Success)
	assert.Equal(t, "no previous model", second.Reason)
	assert.Equal(t, "m1", f.pointers.pointer.ActiveModelID, "second rollback must not move the pointer")
	assert.Equal(t, 1, f.pointers.pointer.RollbackCount)
}

func TestRollbackUnfetchablePreviousModel(t *testing.T) {
	f := newFixture(t, activeModel("m2"))
	f.pointers.pointer.ActiveModelID = "m2"
	f.pointers.pointer.PreviousModelID = "ghost"

	result := f.svc.Rollback(context.Background(), contracts.Horizon7D, "manual", "operator")

	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "not fetchable")
	assert.Equal(t, contracts.ModelActive, f.models.byID["m2"].Status)
}
