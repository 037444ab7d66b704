package jobs

import (
	"context"

	"github.com/wonny/cortex/backend/internal/lifecycle"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// PipelineRunner runs one retrain attempt per horizon
type PipelineRunner interface {
	RunAll(ctx context.Context) []*lifecycle.RunResult
}

// RetrainJob drives the periodic retrain pipeline.
// 매 주기 가드부터 다시 묻는다 — 실제로 학습할지는 가드 체인이 결정
type RetrainJob struct {
	pipeline PipelineRunner
	logger   *logger.Logger
}

func NewRetrainJob(pipeline PipelineRunner, log *logger.Logger) *RetrainJob {
	return &RetrainJob{
		pipeline: pipeline,
		logger:   log,
	}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "retrain_pipeline"
}

// Schedule returns the cron schedule (every day at 3 AM)
func (j *RetrainJob) Schedule() string {
	return "0 0 3 * * *"
}

// MaxRetries returns 0: 학습은 비싸고, 재시도는 다음 주기에 맡긴다
func (j *RetrainJob) MaxRetries() int {
	return 0
}

// Run executes one retrain attempt for every horizon
func (j *RetrainJob) Run(ctx context.Context) error {
	results := j.pipeline.RunAll(ctx)

	for _, result := range results {
		if result.Blocked() {
			j.logger.WithFields(map[string]interface{}{
				"horizon": string(result.Horizon),
				"reasons": result.Guard.BlockReasons,
			}).Info("Retrain skipped by guard")
			continue
		}
		j.logger.WithFields(map[string]interface{}{
			"horizon":  string(result.Horizon),
			"stage":    string(result.Stage),
			"model_id": result.ModelVersionID,
			"decision": string(result.Decision),
		}).Info("Retrain attempt result")
	}

	return nil
}
