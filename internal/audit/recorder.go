package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// =============================================================================
// Audit Recorder
// =============================================================================

// Inserter is the narrow persistence surface the recorder needs (의존성 역전)
type Inserter interface {
	Insert(ctx context.Context, entry contracts.AuditLogEntry) error
}

// Recorder writes audit entries and swallows persistence failures.
// ⭐ SSOT: 감사 기록 실패는 절대 본 작업을 중단시키지 않음 — 로컬 로그로만 남김
type Recorder struct {
	repo Inserter
	log  zerolog.Logger
}

// NewRecorder creates a new audit recorder
func NewRecorder(repo Inserter, log zerolog.Logger) *Recorder {
	return &Recorder{
		repo: repo,
		log:  log.With().Str("component", "audit.recorder").Logger(),
	}
}

// Record persists one entry; never returns an error.
// id/timestamp는 비어 있으면 여기서 채움
func (r *Recorder) Record(ctx context.Context, entry contracts.AuditLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Severity == "" {
		entry.Severity = contracts.AuditInfo
	}

	if err := r.repo.Insert(ctx, entry); err != nil {
		r.log.Warn().Err(err).
			Str("event_type", string(entry.EventType)).
			Str("horizon", string(entry.Horizon)).
			Msg("audit write failed, continuing")
	}
}

// NopRecorder discards every entry; used in tests
type NopRecorder struct{}

// Record implements contracts.AuditSink
func (NopRecorder) Record(ctx context.Context, entry contracts.AuditLogEntry) {}
