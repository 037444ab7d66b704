package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// DatasetExpirer marks outdated frozen datasets as EXPIRED
type DatasetExpirer interface {
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// MaintenanceJob expires datasets past their retention window.
// EXPIRED는 재학습 입력에서 빠질 뿐, 행이 지워지지는 않음 (감사 추적 유지)
type MaintenanceJob struct {
	datasets DatasetExpirer
	audit    contracts.AuditSink
	cfg      *config.LifecycleConfig
	logger   *logger.Logger
}

func NewMaintenanceJob(datasets DatasetExpirer, audit contracts.AuditSink, cfg *config.LifecycleConfig, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		datasets: datasets,
		audit:    audit,
		cfg:      cfg,
		logger:   log,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "dataset_maintenance"
}

// Schedule returns the cron schedule (every day at 4:30 AM)
func (j *MaintenanceJob) Schedule() string {
	return "0 30 4 * * *"
}

// MaxRetries returns 2
func (j *MaintenanceJob) MaxRetries() int {
	return 2
}

// Run expires every frozen dataset older than the retention window
func (j *MaintenanceJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.cfg.DatasetRetention)

	expired, err := j.datasets.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire datasets: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	for _, id := range expired {
		j.audit.Record(ctx, contracts.AuditLogEntry{
			EventType:        contracts.AuditDatasetExpired,
			DatasetVersionID: id,
			Details: map[string]interface{}{
				"cutoff":    cutoff,
				"retention": j.cfg.DatasetRetention.String(),
			},
			TriggeredBy: "maintenance_job",
			Severity:    contracts.AuditInfo,
		})
	}

	j.logger.WithFields(map[string]interface{}{
		"expired": len(expired),
		"cutoff":  cutoff,
	}).Info("Dataset retention sweep completed")

	return nil
}
