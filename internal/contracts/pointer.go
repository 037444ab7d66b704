package contracts

import "time"

// ActiveModelPointer is the singleton serving pointer per horizon
// ⭐ SSOT: 어떤 모델이 서빙 중인지의 유일한 진실
// 불변식: horizon당 non-null activeModelId는 최대 1개이며,
// previousModelId는 activeModelId와 같은 원자적 갱신에서만 쓰임
type ActiveModelPointer struct {
	Horizon         Horizon      `json:"horizon"`
	ActiveModelID   string       `json:"active_model_id"`   // "" = 서빙 모델 없음
	PreviousModelID string       `json:"previous_model_id"` // "" = 이전 모델 없음
	HealthStatus    HealthStatus `json:"health_status"`
	SwitchedAt      time.Time    `json:"switched_at"`
	SwitchedBy      string       `json:"switched_by"`
	SwitchReason    string       `json:"switch_reason"`
	RollbackCount   int          `json:"rollback_count"`
	Version         int64        `json:"version"` // CAS용 낙관적 버전
}

// HasActive reports whether a model is currently serving
func (p *ActiveModelPointer) HasActive() bool {
	return p != nil && p.ActiveModelID != ""
}

// HasPrevious reports whether a rollback target exists
func (p *ActiveModelPointer) HasPrevious() bool {
	return p != nil && p.PreviousModelID != ""
}
