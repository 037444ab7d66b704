package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Active Model Pointer Repository (lifecycle.active_model_pointer)
// =============================================================================
// horizon당 한 행. 갱신은 항상 버전 조건부 단일 UPDATE (CAS)

// ErrPointerConflict means a concurrent writer won the CAS race
var ErrPointerConflict = errors.New("pointer version conflict")

type PointerRepository struct {
	pool *pgxpool.Pool
}

func NewPointerRepository(pool *pgxpool.Pool) *PointerRepository {
	return &PointerRepository{pool: pool}
}

// Get loads the pointer for a horizon, creating the empty row on first read
func (r *PointerRepository) Get(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error) {
	query := `
		SELECT horizon, active_model_id, previous_model_id, health_status,
		       switched_at, switched_by, switch_reason, rollback_count, version
		FROM lifecycle.active_model_pointer
		WHERE horizon = $1`

	p, err := scanPointer(r.pool.QueryRow(ctx, query, string(horizon)))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.initRow(ctx, horizon)
	}
	return p, err
}

// Swap atomically rewrites the pointer. expectedVersion이 현재 행과 다르면
// ErrPointerConflict — 부분 적용 상태는 독자에게 절대 보이지 않음
func (r *PointerRepository) Swap(ctx context.Context, p *contracts.ActiveModelPointer, expectedVersion int64) error {
	query := `
		UPDATE lifecycle.active_model_pointer
		SET active_model_id = $1, previous_model_id = $2, health_status = $3,
		    switched_at = $4, switched_by = $5, switch_reason = $6,
		    rollback_count = $7, version = version + 1
		WHERE horizon = $8 AND version = $9`

	tag, err := r.pool.Exec(ctx, query,
		nullable(p.ActiveModelID), nullable(p.PreviousModelID), string(p.HealthStatus),
		p.SwitchedAt, p.SwitchedBy, p.SwitchReason,
		p.RollbackCount, string(p.Horizon), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("swap pointer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPointerConflict
	}
	p.Version = expectedVersion + 1
	return nil
}

// SetHealth updates only the cached health status on the pointer row
func (r *PointerRepository) SetHealth(ctx context.Context, horizon contracts.Horizon, status contracts.HealthStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE lifecycle.active_model_pointer SET health_status = $1 WHERE horizon = $2`,
		string(status), string(horizon),
	)
	if err != nil {
		return fmt.Errorf("set pointer health: %w", err)
	}
	return nil
}

// CountSwitchesSince counts pointer switches for the monthly rate limit
func (r *PointerRepository) CountSwitchesSince(ctx context.Context, horizon contracts.Horizon, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM lifecycle.audit_log
		WHERE horizon = $1 AND event_type = 'PROMOTED' AND created_at >= $2`,
		string(horizon), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count switches: %w", err)
	}
	return count, nil
}

func (r *PointerRepository) initRow(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lifecycle.active_model_pointer (horizon, health_status, version)
		VALUES ($1, 'UNKNOWN', 0)
		ON CONFLICT (horizon) DO NOTHING`,
		string(horizon),
	)
	if err != nil {
		return nil, fmt.Errorf("init pointer row: %w", err)
	}

	return &contracts.ActiveModelPointer{
		Horizon:      horizon,
		HealthStatus: contracts.HealthUnknown,
	}, nil
}

func scanPointer(row pgx.Row) (*contracts.ActiveModelPointer, error) {
	var (
		p                  contracts.ActiveModelPointer
		horizon, health    string
		activeID, prevID   *string
		switchedAt         *time.Time
		switchedBy, reason *string
	)
	err := row.Scan(&horizon, &activeID, &prevID, &health,
		&switchedAt, &switchedBy, &reason, &p.RollbackCount, &p.Version)
	if err != nil {
		return nil, err
	}

	p.Horizon = contracts.Horizon(horizon)
	p.HealthStatus = contracts.HealthStatus(health)
	if activeID != nil {
		p.ActiveModelID = *activeID
	}
	if prevID != nil {
		p.PreviousModelID = *prevID
	}
	if switchedAt != nil {
		p.SwitchedAt = *switchedAt
	}
	if switchedBy != nil {
		p.SwitchedBy = *switchedBy
	}
	if reason != nil {
		p.SwitchReason = *reason
	}
	return &p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
