package safety

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// =============================================================================
// Kill Switch
// =============================================================================

// KillSwitch is the one cross-horizon shared state: when enabled, retraining
// and promotion stop everywhere. 명시적 toggle 외에는 모든 컴포넌트가 read-only
// ⭐ SSOT: 킬스위치 상태는 여기서만 읽고 씀
type KillSwitch struct {
	pool  *pgxpool.Pool
	cache *redis.Cache
	audit contracts.AuditSink
	log   zerolog.Logger
}

// NewKillSwitch creates the kill switch service
func NewKillSwitch(pool *pgxpool.Pool, cache *redis.Cache, audit contracts.AuditSink, log zerolog.Logger) *KillSwitch {
	return &KillSwitch{
		pool:  pool,
		cache: cache,
		audit: audit,
		log:   log.With().Str("component", "safety.killswitch").Logger(),
	}
}

// Enabled reports whether the kill switch is on.
// 조회 실패 시 안전한 쪽(켜짐)으로 기운다 — 재학습이 한 턴 밀릴 뿐
func (k *KillSwitch) Enabled(ctx context.Context) bool {
	cacheKey := redis.KillSwitchKey()

	var cached bool
	if found, _ := k.cache.Get(ctx, cacheKey, &cached); found {
		return cached
	}

	query := `SELECT enabled FROM lifecycle.kill_switch WHERE id = 1`

	var enabled bool
	err := k.pool.QueryRow(ctx, query).Scan(&enabled)
	if err == pgx.ErrNoRows {
		enabled = false
	} else if err != nil {
		k.log.Error().Err(err).Msg("kill switch read failed, assuming enabled")
		return true
	}

	if err := k.cache.Set(ctx, cacheKey, enabled, redis.TTLRealtime); err != nil {
		k.log.Debug().Err(err).Msg("kill switch cache write failed")
	}

	return enabled
}

// Set toggles the kill switch and audits the change
func (k *KillSwitch) Set(ctx context.Context, enabled bool, triggeredBy, reason string) error {
	query := `
		INSERT INTO lifecycle.kill_switch (id, enabled, updated_by, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := k.pool.Exec(ctx, query, enabled, triggeredBy, time.Now()); err != nil {
		return fmt.Errorf("failed to set kill switch: %w", err)
	}

	// 캐시 무효화 — 추론/가드 경로가 5초 안에 새 값을 보게 함
	_ = k.cache.Delete(ctx, redis.KillSwitchKey())

	severity := contracts.AuditInfo
	if enabled {
		severity = contracts.AuditCritical
	}

	k.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:   contracts.AuditKillSwitch,
		TriggeredBy: triggeredBy,
		Severity:    severity,
		Details: map[string]interface{}{
			"enabled": enabled,
			"reason":  reason,
		},
	})

	k.log.Warn().Bool("enabled", enabled).Str("by", triggeredBy).Msg("kill switch toggled")
	return nil
}
