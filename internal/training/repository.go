package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Model Version Repository (learning.model_versions)
// =============================================================================
// ⭐ SSOT: 모델 버전 영속화는 여기서만

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const modelColumns = `
	id, horizon, dataset_version_id, feature_schema_hash, algorithm,
	hyperparameters, train_metrics, eval_metrics, evaluation_report_id,
	artifact_ref, artifact_hash, status, trained_at, promotion_history`

// Insert persists a freshly trained model version
func (r *Repository) Insert(ctx context.Context, m *contracts.ModelVersion) error {
	hparams, err := json.Marshal(m.Hyperparameters)
	if err != nil {
		return fmt.Errorf("marshal hyperparameters: %w", err)
	}
	trainMetrics, err := json.Marshal(m.TrainMetrics)
	if err != nil {
		return fmt.Errorf("marshal train metrics: %w", err)
	}
	history, err := json.Marshal(m.PromotionHistory)
	if err != nil {
		return fmt.Errorf("marshal promotion history: %w", err)
	}

	query := `
		INSERT INTO learning.model_versions (
			id, horizon, dataset_version_id, feature_schema_hash, algorithm,
			hyperparameters, train_metrics, artifact_ref, artifact_hash,
			status, trained_at, promotion_history
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		m.ID, string(m.Horizon), m.DatasetVersionID, m.FeatureSchemaHash, m.Algorithm,
		hparams, trainMetrics, m.ArtifactRef, m.ArtifactHash,
		string(m.Status), m.TrainedAt, history,
	)
	if err != nil {
		return fmt.Errorf("insert model version: %w", err)
	}
	return nil
}

// GetByID loads a single model version
func (r *Repository) GetByID(ctx context.Context, id string) (*contracts.ModelVersion, error) {
	query := `SELECT ` + modelColumns + ` FROM learning.model_versions WHERE id = $1`
	m, err := scanModel(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// GetActive returns the ACTIVE model for a horizon, nil if none
func (r *Repository) GetActive(ctx context.Context, horizon contracts.Horizon) (*contracts.ModelVersion, error) {
	query := `SELECT ` + modelColumns + `
		FROM learning.model_versions
		WHERE horizon = $1 AND status = 'ACTIVE'
		ORDER BY trained_at DESC
		LIMIT 1`
	m, err := scanModel(r.pool.QueryRow(ctx, query, string(horizon)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// UpdateStatus performs a validated, conditional status transition.
// WHERE status = from 조건으로 동시 전이 경합을 차단
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to contracts.ModelStatus) error {
	if err := contracts.ValidateTransition(from, to); err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE learning.model_versions SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update model status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("model %s is not in status %s", id, from)
	}
	return nil
}

// SetEvaluation attaches eval metrics and the report id after gating
func (r *Repository) SetEvaluation(ctx context.Context, id string, metrics contracts.MetricSet, reportID string) error {
	evalJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal eval metrics: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE learning.model_versions SET eval_metrics = $1, evaluation_report_id = $2 WHERE id = $3`,
		evalJSON, reportID, id,
	)
	if err != nil {
		return fmt.Errorf("set evaluation: %w", err)
	}
	return nil
}

// AppendPromotionRecord adds one promotion/rollback record to the history
func (r *Repository) AppendPromotionRecord(ctx context.Context, id string, record contracts.PromotionRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal promotion record: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE learning.model_versions
		SET promotion_history = promotion_history || $1::jsonb
		WHERE id = $2`,
		recordJSON, id,
	)
	if err != nil {
		return fmt.Errorf("append promotion record: %w", err)
	}
	return nil
}

// LastTrainedAt returns the most recent training time for a horizon.
// 학습 이력이 없으면 zero time
func (r *Repository) LastTrainedAt(ctx context.Context, horizon contracts.Horizon) (time.Time, error) {
	var trainedAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT trained_at
		FROM learning.model_versions
		WHERE horizon = $1
		ORDER BY trained_at DESC
		LIMIT 1`, string(horizon)).Scan(&trainedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last trained at: %w", err)
	}
	return trainedAt, nil
}

func scanModel(row pgx.Row) (*contracts.ModelVersion, error) {
	var (
		m                        contracts.ModelVersion
		horizon, status          string
		hparams, trainM, history []byte
		evalM                    []byte
		evalReportID             *string
	)
	err := row.Scan(
		&m.ID, &horizon, &m.DatasetVersionID, &m.FeatureSchemaHash, &m.Algorithm,
		&hparams, &trainM, &evalM, &evalReportID,
		&m.ArtifactRef, &m.ArtifactHash, &status, &m.TrainedAt, &history,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(hparams, &m.Hyperparameters); err != nil {
		return nil, fmt.Errorf("unmarshal hyperparameters: %w", err)
	}
	if err := json.Unmarshal(trainM, &m.TrainMetrics); err != nil {
		return nil, fmt.Errorf("unmarshal train metrics: %w", err)
	}
	if len(evalM) > 0 {
		m.EvalMetrics = &contracts.MetricSet{}
		if err := json.Unmarshal(evalM, m.EvalMetrics); err != nil {
			return nil, fmt.Errorf("unmarshal eval metrics: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &m.PromotionHistory); err != nil {
			return nil, fmt.Errorf("unmarshal promotion history: %w", err)
		}
	}
	if evalReportID != nil {
		m.EvaluationReportID = *evalReportID
	}
	m.Horizon = contracts.Horizon(horizon)
	m.Status = contracts.ModelStatus(status)
	return &m, nil
}
