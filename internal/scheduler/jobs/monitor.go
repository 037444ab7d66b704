package jobs

import (
	"context"
	"errors"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// HealthChecker produces one shadow report per horizon
type HealthChecker interface {
	CheckHorizon(ctx context.Context, horizon contracts.Horizon) (*contracts.ShadowMonitorReport, error)
}

// MonitorJob runs the shadow health check for every horizon
type MonitorJob struct {
	monitor HealthChecker
	logger  *logger.Logger
}

func NewMonitorJob(monitor HealthChecker, log *logger.Logger) *MonitorJob {
	return &MonitorJob{
		monitor: monitor,
		logger:  log,
	}
}

// Name returns the job name
func (j *MonitorJob) Name() string {
	return "shadow_monitor"
}

// Schedule returns the cron schedule (every hour)
func (j *MonitorJob) Schedule() string {
	return "0 0 * * * *"
}

// MaxRetries returns 1
func (j *MonitorJob) MaxRetries() int {
	return 1
}

// Run checks every horizon; one horizon's failure never skips the others
func (j *MonitorJob) Run(ctx context.Context) error {
	var errs []error
	for _, horizon := range contracts.AllHorizons() {
		report, err := j.monitor.CheckHorizon(ctx, horizon)
		if err != nil {
			j.logger.WithError(err).WithField("horizon", string(horizon)).Error("Shadow check failed")
			errs = append(errs, err)
			continue
		}
		if report == nil {
			continue
		}
		if report.Decision != contracts.HealthHealthy {
			j.logger.WithFields(map[string]interface{}{
				"horizon":  string(horizon),
				"decision": string(report.Decision),
				"reasons":  report.Reasons,
			}).Warn("Active model not healthy")
		}
	}
	return errors.Join(errs...)
}
