package drift

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// Source reports the current drift level per horizon.
// 추론 경로에서도 읽히므로 짧은 TTL 캐시를 사이에 둠
// ⭐ SSOT: 드리프트 레벨 조회는 여기서만
type Source struct {
	pool  *pgxpool.Pool
	cache *redis.Cache
	log   zerolog.Logger
}

// NewSource creates a new drift source
func NewSource(pool *pgxpool.Pool, cache *redis.Cache, log zerolog.Logger) *Source {
	return &Source{
		pool:  pool,
		cache: cache,
		log:   log.With().Str("component", "drift.source").Logger(),
	}
}

// CurrentLevel returns the latest reported drift level for the horizon.
// 신호가 아직 없으면 LOW로 간주 (드리프트 부재는 차단 사유가 아님)
func (s *Source) CurrentLevel(ctx context.Context, horizon contracts.Horizon) (contracts.DriftLevel, error) {
	cacheKey := redis.DriftLevelKey(string(horizon))

	var cached string
	if found, _ := s.cache.Get(ctx, cacheKey, &cached); found {
		if level, err := contracts.ParseDriftLevel(cached); err == nil {
			return level, nil
		}
	}

	query := `
		SELECT level
		FROM learning.drift_signals
		WHERE horizon = $1
		ORDER BY reported_at DESC
		LIMIT 1
	`

	var raw string
	err := s.pool.QueryRow(ctx, query, string(horizon)).Scan(&raw)
	if err == pgx.ErrNoRows {
		return contracts.DriftLow, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query drift level: %w", err)
	}

	level, err := contracts.ParseDriftLevel(raw)
	if err != nil {
		return "", fmt.Errorf("drift signal for %s is corrupt: %w", horizon, err)
	}

	if err := s.cache.Set(ctx, cacheKey, string(level), redis.TTLShort); err != nil {
		s.log.Debug().Err(err).Msg("drift cache write failed")
	}

	return level, nil
}
