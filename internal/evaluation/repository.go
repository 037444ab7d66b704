package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Evaluation Report Repository (learning.evaluation_reports)
// =============================================================================
// 리포트는 append-only — 생성 후 갱신 경로 없음

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists one immutable evaluation report
func (r *Repository) Insert(ctx context.Context, report *contracts.EvaluationReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal evaluation report: %w", err)
	}

	query := `
		INSERT INTO learning.evaluation_reports (
			id, candidate_model_id, dataset_version_id, horizon, decision, body, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		report.ID, report.CandidateModelID, report.DatasetVersionID,
		string(report.Horizon), string(report.Decision), body, report.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation report: %w", err)
	}
	return nil
}

// GetByID loads one report, nil if absent
func (r *Repository) GetByID(ctx context.Context, id string) (*contracts.EvaluationReport, error) {
	var body []byte
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM learning.evaluation_reports WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query evaluation report: %w", err)
	}

	var report contracts.EvaluationReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation report: %w", err)
	}
	return &report, nil
}

// LatestForModel returns the most recent report for a model, nil if none
func (r *Repository) LatestForModel(ctx context.Context, modelID string) (*contracts.EvaluationReport, error) {
	var body []byte
	err := r.pool.QueryRow(ctx, `
		SELECT body
		FROM learning.evaluation_reports
		WHERE candidate_model_id = $1
		ORDER BY evaluated_at DESC
		LIMIT 1`, modelID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest report: %w", err)
	}

	var report contracts.EvaluationReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation report: %w", err)
	}
	return &report, nil
}
