package contracts

import "time"

// HealthStatus is the shadow monitor's classification of the active model
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthCritical HealthStatus = "CRITICAL"
	HealthUnknown  HealthStatus = "UNKNOWN" // 아직 리포트 없음
)

// Valid reports whether the status is a known health state
func (s HealthStatus) Valid() bool {
	switch s {
	case HealthHealthy, HealthDegraded, HealthCritical, HealthUnknown:
		return true
	default:
		return false
	}
}

// HealthComparison captures the deltas the classification was based on
type HealthComparison struct {
	PrecisionDropVsBaseline  float64 `json:"precision_drop_vs_baseline"` // percentage points
	FPRateIncreaseVsBaseline float64 `json:"fp_rate_increase_vs_baseline"`
	PrecisionDeltaVsLast     float64 `json:"precision_delta_vs_last"`
}

// ShadowMonitorReport is one trailing-window health report; append-only
type ShadowMonitorReport struct {
	ID                    string           `json:"id"`
	Horizon               Horizon          `json:"horizon"`
	ModelID               string           `json:"model_id"`
	Window                time.Duration    `json:"window"`
	Metrics               MetricSet        `json:"metrics"`
	Comparison            HealthComparison `json:"comparison"`
	Decision              HealthStatus     `json:"decision"`
	Reasons               []string         `json:"reasons"`
	ConsecutiveCritical   int              `json:"consecutive_critical"`
	AutoRollbackTriggered bool             `json:"auto_rollback_triggered"`
	WindowStart           time.Time        `json:"window_start"`
	WindowEnd             time.Time        `json:"window_end"`
}
