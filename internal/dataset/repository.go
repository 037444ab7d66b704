package dataset

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
// Dataset Version Repository (learning.dataset_versions)
// =============================================================================

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertFrozen persists a newly frozen dataset version
func (r *Repository) InsertFrozen(ctx context.Context, v *contracts.DatasetVersion) error {
	sampleIDs, err := json.Marshal(v.SampleIDs)
	if err != nil {
		return fmt.Errorf("marshal sample ids: %w", err)
	}
	filters, err := json.Marshal(v.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	query := `
		INSERT INTO learning.dataset_versions (
			id, horizon, sample_ids, filters, content_hash, feature_schema_hash,
			positive_count, negative_count, range_from, range_to, status, frozen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		v.ID, string(v.Horizon), sampleIDs, filters, v.ContentHash, v.FeatureSchemaHash,
		v.ClassDistribution.Positive, v.ClassDistribution.Negative,
		v.TimeRange.From, v.TimeRange.To, string(v.Status), v.FrozenAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset version: %w", err)
	}
	return nil
}

// GetByID loads a single dataset version
func (r *Repository) GetByID(ctx context.Context, id string) (*contracts.DatasetVersion, error) {
	query := `
		SELECT id, horizon, sample_ids, filters, content_hash, feature_schema_hash,
		       positive_count, negative_count, range_from, range_to, status, frozen_at
		FROM learning.dataset_versions
		WHERE id = $1`

	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByHash finds a frozen version with identical content (멱등 동결용)
func (r *Repository) GetByHash(ctx context.Context, horizon contracts.Horizon, contentHash string) (*contracts.DatasetVersion, error) {
	query := `
		SELECT id, horizon, sample_ids, filters, content_hash, feature_schema_hash,
		       positive_count, negative_count, range_from, range_to, status, frozen_at
		FROM learning.dataset_versions
		WHERE horizon = $1 AND content_hash = $2 AND status = 'FROZEN'
		ORDER BY frozen_at DESC
		LIMIT 1`

	v, err := r.scanOne(r.pool.QueryRow(ctx, query, string(horizon), contentHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// MarkUsed flips FROZEN → USED. 다른 상태에서의 전이는 거부
func (r *Repository) MarkUsed(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE learning.dataset_versions SET status = 'USED' WHERE id = $1 AND status = 'FROZEN'`, id)
	if err != nil {
		return fmt.Errorf("mark dataset used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dataset %s is not in FROZEN status", id)
	}
	return nil
}

// ExpireOlderThan marks stale FROZEN versions as EXPIRED, returning their ids
func (r *Repository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE learning.dataset_versions
		SET status = 'EXPIRED'
		WHERE status = 'FROZEN' AND frozen_at < $1
		RETURNING id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire dataset versions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LatestSchemaHash returns the schema hash of the most recent frozen version
func (r *Repository) LatestSchemaHash(ctx context.Context, horizon contracts.Horizon) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT feature_schema_hash
		FROM learning.dataset_versions
		WHERE horizon = $1
		ORDER BY frozen_at DESC
		LIMIT 1`, string(horizon)).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest schema hash: %w", err)
	}
	return hash, nil
}

func (r *Repository) scanOne(row pgx.Row) (*contracts.DatasetVersion, error) {
	var (
		v                  contracts.DatasetVersion
		horizon, status    string
		sampleIDs, filters []byte
	)
	err := row.Scan(
		&v.ID, &horizon, &sampleIDs, &filters, &v.ContentHash, &v.FeatureSchemaHash,
		&v.ClassDistribution.Positive, &v.ClassDistribution.Negative,
		&v.TimeRange.From, &v.TimeRange.To, &status, &v.FrozenAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sampleIDs, &v.SampleIDs); err != nil {
		return nil, fmt.Errorf("unmarshal sample ids: %w", err)
	}
	if err := json.Unmarshal(filters, &v.Filters); err != nil {
		return nil, fmt.Errorf("unmarshal filters: %w", err)
	}
	v.Horizon = contracts.Horizon(horizon)
	v.Status = contracts.DatasetStatus(status)
	return &v, nil
}
