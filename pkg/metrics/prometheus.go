package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes the lifecycle counters as Prometheus metrics
// ⭐ SSOT: 메트릭 정의는 여기서만
type Recorder struct {
	guardChecks    *prometheus.CounterVec
	trainRuns      *prometheus.CounterVec
	promotions     *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	monitorReports *prometheus.CounterVec
	blendCalls     *prometheus.CounterVec
	computeLatency *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder on the default registry
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder bound to a specific registry.
// 테스트에서는 격리된 레지스트리를 주입
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		guardChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_guard_checks_total",
				Help: "Guard chain evaluations by horizon and outcome",
			},
			[]string{"horizon", "outcome"},
		),
		trainRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_train_runs_total",
				Help: "Training orchestrations by horizon and outcome",
			},
			[]string{"horizon", "outcome"},
		),
		promotions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_promotions_total",
				Help: "Promotion attempts by horizon and decision",
			},
			[]string{"horizon", "decision"},
		),
		rollbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_rollbacks_total",
				Help: "Rollbacks by horizon and trigger",
			},
			[]string{"horizon", "trigger"},
		),
		monitorReports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_monitor_reports_total",
				Help: "Shadow monitor reports by horizon and decision",
			},
			[]string{"horizon", "decision"},
		),
		blendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_blend_calls_total",
				Help: "Confidence blend calls by horizon and ml availability",
			},
			[]string{"horizon", "ml"},
		),
		computeLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_compute_call_duration_seconds",
				Help:    "Duration of compute service calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
}

// RecordGuardCheck records one guard chain run
func (r *Recorder) RecordGuardCheck(horizon string, passed bool) {
	outcome := "pass"
	if !passed {
		outcome = "block"
	}
	r.guardChecks.WithLabelValues(horizon, outcome).Inc()
}

// RecordTrainRun records a training orchestration result
func (r *Recorder) RecordTrainRun(horizon string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	r.trainRuns.WithLabelValues(horizon, outcome).Inc()
}

// RecordPromotion records a promotion attempt
func (r *Recorder) RecordPromotion(horizon, decision string) {
	r.promotions.WithLabelValues(horizon, decision).Inc()
}

// RecordRollback records a rollback with its trigger (manual/auto)
func (r *Recorder) RecordRollback(horizon, trigger string) {
	r.rollbacks.WithLabelValues(horizon, trigger).Inc()
}

// RecordMonitorReport records a shadow monitor decision
func (r *Recorder) RecordMonitorReport(horizon, decision string) {
	r.monitorReports.WithLabelValues(horizon, decision).Inc()
}

// RecordBlendCall records a blend call and whether ML contributed
func (r *Recorder) RecordBlendCall(horizon string, mlUsed bool) {
	ml := "on"
	if !mlUsed {
		ml = "off"
	}
	r.blendCalls.WithLabelValues(horizon, ml).Inc()
}

// ObserveComputeLatency records the duration of a compute service call
func (r *Recorder) ObserveComputeLatency(endpoint string, seconds float64) {
	r.computeLatency.WithLabelValues(endpoint).Observe(seconds)
}

// Handler returns the HTTP handler that serves the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
