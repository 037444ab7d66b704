package lifecycle

import (
	"context"
	"fmt"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// =============================================================================
// Retrain Pipeline
// =============================================================================
// guard → frame → train → evaluate → apply 순서를 한 번의 시도로 묶는다.
// 승격은 여기 없음 — 평가 통과는 "승격 가능"이지 "승격됨"이 아니다

// Stage names the pipeline step a run ended at
type Stage string

const (
	StageGuard    Stage = "guard"
	StageFrame    Stage = "frame"
	StageTrain    Stage = "train"
	StageEvaluate Stage = "evaluate"
	StageDone     Stage = "done"
)

// Guard answers whether a horizon may retrain right now
type Guard interface {
	CanRetrain(ctx context.Context, horizon contracts.Horizon) contracts.GuardSnapshot
}

// Framer freezes a training dataset for a horizon
type Framer interface {
	Frame(ctx context.Context, horizon contracts.Horizon) (*contracts.TrainingDataset, error)
}

// Trainer produces a CANDIDATE model from a frozen dataset
type Trainer interface {
	Train(ctx context.Context, datasetVersionID string, horizon contracts.Horizon, algorithm string, hparams contracts.Hyperparameters) (*contracts.ModelVersion, error)
}

// Evaluator scores a candidate and applies the advisory decision
type Evaluator interface {
	Evaluate(ctx context.Context, candidateModelID string) (*contracts.EvaluationReport, error)
	ApplyDecision(ctx context.Context, report *contracts.EvaluationReport) error
}

// RunResult summarizes one retrain attempt for a horizon
type RunResult struct {
	Horizon          contracts.Horizon           `json:"horizon"`
	Stage            Stage                       `json:"stage"`
	Guard            contracts.GuardSnapshot     `json:"guard"`
	DatasetVersionID string                      `json:"dataset_version_id,omitempty"`
	ModelVersionID   string                      `json:"model_version_id,omitempty"`
	Decision         contracts.GateDecision      `json:"decision,omitempty"`
	Report           *contracts.EvaluationReport `json:"report,omitempty"`
}

// Blocked reports whether the guard stopped the run before framing
func (r *RunResult) Blocked() bool {
	return r.Stage == StageGuard && !r.Guard.OverallPass
}

// Pipeline chains the lifecycle components into one retrain attempt
type Pipeline struct {
	guard     Guard
	framer    Framer
	trainer   Trainer
	evaluator Evaluator
	algorithm string
	log       *logger.Logger
}

func NewPipeline(guard Guard, framer Framer, trainer Trainer, evaluator Evaluator, cfg *config.Config, log *logger.Logger) *Pipeline {
	return &Pipeline{
		guard:     guard,
		framer:    framer,
		trainer:   trainer,
		evaluator: evaluator,
		algorithm: cfg.Compute.Algorithm,
		log:       log.WithField("component", "retrain_pipeline"),
	}
}

// Run executes one retrain attempt for the horizon.
// 가드 차단은 에러가 아니라 정상 결과 — Blocked()로 구분한다
func (p *Pipeline) Run(ctx context.Context, horizon contracts.Horizon) (*RunResult, error) {
	result := &RunResult{Horizon: horizon, Stage: StageGuard}

	result.Guard = p.guard.CanRetrain(ctx, horizon)
	if !result.Guard.OverallPass {
		p.log.WithFields(map[string]interface{}{
			"horizon": string(horizon),
			"reasons": result.Guard.BlockReasons,
		}).Info("Retrain blocked by guard chain")
		return result, nil
	}

	result.Stage = StageFrame
	ds, err := p.framer.Frame(ctx, horizon)
	if err != nil {
		return result, fmt.Errorf("frame dataset: %w", err)
	}
	result.DatasetVersionID = ds.Version.ID

	result.Stage = StageTrain
	model, err := p.trainer.Train(ctx, ds.Version.ID, horizon, p.algorithm, nil)
	if err != nil {
		return result, fmt.Errorf("train candidate: %w", err)
	}
	result.ModelVersionID = model.ID

	result.Stage = StageEvaluate
	report, err := p.evaluator.Evaluate(ctx, model.ID)
	if err != nil {
		return result, fmt.Errorf("evaluate candidate: %w", err)
	}
	result.Report = report
	result.Decision = report.Decision

	// APPROVED/REJECTED만 상태 전이 — INCONCLUSIVE는 후보로 남겨둔다
	if report.Decision == contracts.GateApproved || report.Decision == contracts.GateRejected {
		if err := p.evaluator.ApplyDecision(ctx, report); err != nil {
			return result, fmt.Errorf("apply gate decision: %w", err)
		}
	}

	result.Stage = StageDone
	p.log.WithFields(map[string]interface{}{
		"horizon":  string(horizon),
		"dataset":  result.DatasetVersionID,
		"model_id": result.ModelVersionID,
		"decision": string(result.Decision),
	}).Info("Retrain attempt finished")

	return result, nil
}

// RunAll runs every horizon independently; one horizon's failure
// never stops the others
func (p *Pipeline) RunAll(ctx context.Context) []*RunResult {
	results := make([]*RunResult, 0, len(contracts.AllHorizons()))
	for _, horizon := range contracts.AllHorizons() {
		result, err := p.Run(ctx, horizon)
		if err != nil {
			p.log.WithError(err).WithField("horizon", string(horizon)).Error("Retrain attempt failed")
		}
		results = append(results, result)
	}
	return results
}
