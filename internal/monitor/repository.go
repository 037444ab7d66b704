package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Shadow Report Repository (learning.shadow_reports)
// =============================================================================
// 리포트는 append-only — consecutive 카운터는 최근 리포트 역스캔으로만 계산

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists one immutable shadow monitor report
func (r *Repository) Insert(ctx context.Context, report *contracts.ShadowMonitorReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal shadow report: %w", err)
	}

	query := `
		INSERT INTO learning.shadow_reports (
			id, horizon, model_id, decision, body, window_start, window_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		report.ID,
		string(report.Horizon),
		report.ModelID,
		string(report.Decision),
		body,
		report.WindowStart,
		report.WindowEnd,
	)
	if err != nil {
		return fmt.Errorf("insert shadow report: %w", err)
	}
	return nil
}

// Recent returns the newest reports for (horizon, modelID), newest first
func (r *Repository) Recent(ctx context.Context, horizon contracts.Horizon, modelID string, limit int) ([]contracts.ShadowMonitorReport, error) {
	query := `
		SELECT body FROM learning.shadow_reports
		WHERE horizon = $1 AND model_id = $2
		ORDER BY window_end DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, string(horizon), modelID, limit)
	if err != nil {
		return nil, fmt.Errorf("query shadow reports: %w", err)
	}
	defer rows.Close()

	var reports []contracts.ShadowMonitorReport
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan shadow report: %w", err)
		}
		var report contracts.ShadowMonitorReport
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, fmt.Errorf("unmarshal shadow report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
