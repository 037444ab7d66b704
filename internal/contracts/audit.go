package contracts

import "time"

// AuditEventType enumerates every lifecycle event the audit log records
type AuditEventType string

const (
	AuditGuardBlocked     AuditEventType = "GUARD_BLOCKED"
	AuditDatasetFrozen    AuditEventType = "DATASET_FROZEN"
	AuditDatasetExpired   AuditEventType = "DATASET_EXPIRED"
	AuditTrainStarted     AuditEventType = "TRAIN_STARTED"
	AuditTrainFinished    AuditEventType = "TRAIN_FINISHED"
	AuditTrainFailed      AuditEventType = "TRAIN_FAILED"
	AuditEvaluated        AuditEventType = "EVALUATED"
	AuditModelApproved    AuditEventType = "MODEL_APPROVED"
	AuditModelRejected    AuditEventType = "MODEL_REJECTED"
	AuditPromoted         AuditEventType = "PROMOTED"
	AuditPromotionBlocked AuditEventType = "PROMOTION_BLOCKED"
	AuditRolledBack       AuditEventType = "ROLLED_BACK"
	AuditRollbackNoop     AuditEventType = "ROLLBACK_NOOP"
	AuditHealthChanged    AuditEventType = "HEALTH_CHANGED"
	AuditKillSwitch       AuditEventType = "KILL_SWITCH"
)

// AuditSeverity mirrors log levels for the audit trail
type AuditSeverity string

const (
	AuditInfo     AuditSeverity = "info"
	AuditWarning  AuditSeverity = "warning"
	AuditCritical AuditSeverity = "critical"
)

// AuditLogEntry is one append-only audit record
// 감사 기록 실패는 절대 본 작업을 중단시키지 않음
type AuditLogEntry struct {
	ID               string                 `json:"id"`
	EventType        AuditEventType         `json:"event_type"`
	Horizon          Horizon                `json:"horizon"`
	DatasetVersionID string                 `json:"dataset_version_id,omitempty"`
	ModelVersionID   string                 `json:"model_version_id,omitempty"`
	Details          map[string]interface{} `json:"details,omitempty"`
	TriggeredBy      string                 `json:"triggered_by"`
	Severity         AuditSeverity          `json:"severity"`
	Timestamp        time.Time              `json:"timestamp"`
}
