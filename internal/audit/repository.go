package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// Repository handles audit trail persistence
// ⭐ SSOT: 감사 기록 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one audit entry
func (r *Repository) Insert(ctx context.Context, entry contracts.AuditLogEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO lifecycle.audit_log (
			id, event_type, horizon, dataset_version_id, model_version_id,
			details, triggered_by, severity, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		entry.ID, string(entry.EventType), string(entry.Horizon),
		nullable(entry.DatasetVersionID), nullable(entry.ModelVersionID),
		detailsJSON, entry.TriggeredBy, string(entry.Severity), entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// Recent returns the latest entries for a horizon, newest first
func (r *Repository) Recent(ctx context.Context, horizon contracts.Horizon, limit int) ([]contracts.AuditLogEntry, error) {
	query := `
		SELECT id, event_type, horizon, dataset_version_id, model_version_id,
		       details, triggered_by, severity, created_at
		FROM lifecycle.audit_log
		WHERE horizon = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, string(horizon), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]contracts.AuditLogEntry, 0)

	for rows.Next() {
		var entry contracts.AuditLogEntry
		var eventType, hz, severity string
		var datasetID, modelID *string
		var detailsJSON []byte

		err := rows.Scan(
			&entry.ID, &eventType, &hz, &datasetID, &modelID,
			&detailsJSON, &entry.TriggeredBy, &severity, &entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.EventType = contracts.AuditEventType(eventType)
		entry.Horizon = contracts.Horizon(hz)
		entry.Severity = contracts.AuditSeverity(severity)
		if datasetID != nil {
			entry.DatasetVersionID = *datasetID
		}
		if modelID != nil {
			entry.ModelVersionID = *modelID
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// CountSince counts entries of a given type since a point in time.
// 가드의 ingestion backlog 체크가 최근 차단 횟수를 세는 데 사용
func (r *Repository) CountSince(ctx context.Context, horizon contracts.Horizon, eventType contracts.AuditEventType, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM lifecycle.audit_log
		WHERE horizon = $1 AND event_type = $2 AND created_at >= $3
	`

	var count int
	err := r.pool.QueryRow(ctx, query, string(horizon), string(eventType), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
