package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/lifecycle"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
)

type fakeRunner struct {
	results []*lifecycle.RunResult
	calls   int
}

func (f *fakeRunner) RunAll(ctx context.Context) []*lifecycle.RunResult {
	f.calls++
	return f.results
}

type fakeChecker struct {
	errs    map[contracts.Horizon]error
	checked []contracts.Horizon
}

func (f *fakeChecker) CheckHorizon(ctx context.Context, horizon contracts.Horizon) (*contracts.ShadowMonitorReport, error) {
	f.checked = append(f.checked, horizon)
	if err := f.errs[horizon]; err != nil {
		return nil, err
	}
	return &contracts.ShadowMonitorReport{Horizon: horizon, Decision: contracts.HealthHealthy}, nil
}

type fakeExpirer struct {
	expired []string
	err     error
	cutoffs []time.Time
}

func (f *fakeExpirer) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.expired, f.err
}

type capturingAudit struct {
	entries []contracts.AuditLogEntry
}

func (c *capturingAudit) Record(ctx context.Context, entry contracts.AuditLogEntry) {
	c.entries = append(c.entries, entry)
}

func TestRetrainJobRunsAllHorizons(t *testing.T) {
	runner := &fakeRunner{results: []*lifecycle.RunResult{
		{Horizon: contracts.Horizon7D, Stage: lifecycle.StageDone, Decision: contracts.GateApproved},
		{Horizon: contracts.Horizon30D, Stage: lifecycle.StageGuard},
	}}
	job := NewRetrainJob(runner, logger.NewNop())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 0, job.MaxRetries())
}

func TestMonitorJobChecksEveryHorizonDespiteFailure(t *testing.T) {
	checker := &fakeChecker{errs: map[contracts.Horizon]error{
		contracts.Horizon7D: errors.New("compute down"),
	}}
	job := NewMonitorJob(checker, logger.NewNop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []contracts.Horizon{contracts.Horizon7D, contracts.Horizon30D}, checker.checked)
}

func TestMaintenanceJobAuditsEachExpiredDataset(t *testing.T) {
	expirer := &fakeExpirer{expired: []string{"ds_7d_old", "ds_30d_old"}}
	audit := &capturingAudit{}
	cfg := &config.LifecycleConfig{DatasetRetention: 720 * time.Hour}
	job := NewMaintenanceJob(expirer, audit, cfg, logger.NewNop())

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, audit.entries, 2)
	assert.Equal(t, contracts.AuditDatasetExpired, audit.entries[0].EventType)
	assert.Equal(t, "ds_7d_old", audit.entries[0].DatasetVersionID)
	require.Len(t, expirer.cutoffs, 1)
	assert.WithinDuration(t, time.Now().Add(-720*time.Hour), expirer.cutoffs[0], time.Minute)
}

func TestMaintenanceJobNoExpiredNoAudit(t *testing.T) {
	expirer := &fakeExpirer{}
	audit := &capturingAudit{}
	cfg := &config.LifecycleConfig{DatasetRetention: 720 * time.Hour}
	job := NewMaintenanceJob(expirer, audit, cfg, logger.NewNop())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, audit.entries)
}
