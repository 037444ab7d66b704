package samples

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// Repository queries the sample/feature store
// ⭐ SSOT: 표본 조회는 여기서만 — 항상 snapshot_at 오름차순으로 반환
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new sample repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// QueryByFilter returns samples matching the filter, ordered by time
func (r *Repository) QueryByFilter(ctx context.Context, filter contracts.SampleFilter) ([]contracts.Sample, error) {
	query := `
		SELECT id, horizon, features, outcome, quality_score, drift_level, source, snapshot_at
		FROM learning.samples
		WHERE horizon = $1
		  AND snapshot_at >= $2
		  AND snapshot_at <= $3
		  AND quality_score >= $4
		  AND ($5 = false OR outcome NOT IN ('AMBIGUOUS'))
		ORDER BY snapshot_at ASC
	`

	from, to := window(filter)
	rows, err := r.pool.Query(ctx, query,
		string(filter.Horizon), from, to, filter.MinQuality, filter.OnlyResolved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	result := make([]contracts.Sample, 0)

	for rows.Next() {
		var s contracts.Sample
		var hz, outcome, drift, source string
		var featuresJSON []byte

		err := rows.Scan(&s.ID, &hz, &featuresJSON, &outcome, &s.QualityScore, &drift, &source, &s.SnapshotAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		s.Horizon = contracts.Horizon(hz)
		s.Outcome = contracts.Outcome(outcome)
		s.DriftLevel = contracts.DriftLevel(drift)
		s.Source = contracts.SampleSource(source)

		if err := json.Unmarshal(featuresJSON, &s.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features for sample %s: %w", s.ID, err)
		}

		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// CountByFilter counts matching samples without loading them
func (r *Repository) CountByFilter(ctx context.Context, filter contracts.SampleFilter) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM learning.samples
		WHERE horizon = $1
		  AND snapshot_at >= $2
		  AND snapshot_at <= $3
		  AND quality_score >= $4
		  AND ($5 = false OR outcome NOT IN ('AMBIGUOUS'))
	`

	from, to := window(filter)
	var count int
	err := r.pool.QueryRow(ctx, query,
		string(filter.Horizon), from, to, filter.MinQuality, filter.OnlyResolved,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}

	return count, nil
}

// GetByIDs loads specific samples by id, ordered by time
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]contracts.Sample, error) {
	query := `
		SELECT id, horizon, features, outcome, quality_score, drift_level, source, snapshot_at
		FROM learning.samples
		WHERE id = ANY($1)
		ORDER BY snapshot_at ASC
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples by ids: %w", err)
	}
	defer rows.Close()

	result := make([]contracts.Sample, 0, len(ids))

	for rows.Next() {
		var s contracts.Sample
		var hz, outcome, drift, source string
		var featuresJSON []byte

		err := rows.Scan(&s.ID, &hz, &featuresJSON, &outcome, &s.QualityScore, &drift, &source, &s.SnapshotAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		s.Horizon = contracts.Horizon(hz)
		s.Outcome = contracts.Outcome(outcome)
		s.DriftLevel = contracts.DriftLevel(drift)
		s.Source = contracts.SampleSource(source)

		if err := json.Unmarshal(featuresJSON, &s.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features for sample %s: %w", s.ID, err)
		}

		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// EligibilityStats summarizes the eligible pool for the guard chain
type EligibilityStats struct {
	Total      int     `json:"total"`
	LiveCount  int     `json:"live_count"`
	LiveShare  float64 `json:"live_share"`
	AvgQuality float64 `json:"avg_quality"`
}

// Stats computes count, live share and average quality in one query
func (r *Repository) Stats(ctx context.Context, filter contracts.SampleFilter) (*EligibilityStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE source = 'live'),
		       COALESCE(AVG(quality_score), 0)
		FROM learning.samples
		WHERE horizon = $1
		  AND snapshot_at >= $2
		  AND snapshot_at <= $3
		  AND quality_score >= $4
		  AND ($5 = false OR outcome NOT IN ('AMBIGUOUS'))
	`

	from, to := window(filter)
	stats := &EligibilityStats{}
	err := r.pool.QueryRow(ctx, query,
		string(filter.Horizon), from, to, filter.MinQuality, filter.OnlyResolved,
	).Scan(&stats.Total, &stats.LiveCount, &stats.AvgQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sample stats: %w", err)
	}

	if stats.Total > 0 {
		stats.LiveShare = float64(stats.LiveCount) / float64(stats.Total)
	}

	return stats, nil
}

// window resolves the filter time range.
// To가 비어 있으면 현재 시각까지로 해석 (필터 객체 자체는 불변 유지)
func window(filter contracts.SampleFilter) (time.Time, time.Time) {
	to := filter.To
	if to.IsZero() {
		to = time.Now()
	}
	return filter.From, to
}
