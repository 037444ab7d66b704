package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/internal/lifecycle"
	"github.com/wonny/cortex/backend/internal/promotion"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeGuard struct {
	pass bool
}

func (f *fakeGuard) CanRetrain(ctx context.Context, horizon contracts.Horizon) contracts.GuardSnapshot {
	return contracts.GuardSnapshot{Horizon: horizon, OverallPass: f.pass}
}

type fakePipeline struct {
	result *lifecycle.RunResult
	err    error
}

func (f *fakePipeline) Run(ctx context.Context, horizon contracts.Horizon) (*lifecycle.RunResult, error) {
	return f.result, f.err
}

type fakePointers struct {
	pointer *contracts.ActiveModelPointer
}

func (f *fakePointers) Get(ctx context.Context, horizon contracts.Horizon) (*contracts.ActiveModelPointer, error) {
	return f.pointer, nil
}

type fakeReports struct {
	reports []contracts.ShadowMonitorReport
}

func (f *fakeReports) Recent(ctx context.Context, horizon contracts.Horizon, modelID string, limit int) ([]contracts.ShadowMonitorReport, error) {
	return f.reports, nil
}

type fakePromoter struct {
	promoteResult  *promotion.PromoteResult
	rollbackResult *promotion.RollbackResult
	lastForce      bool
	lastTrigger    string
}

func (f *fakePromoter) Promote(ctx context.Context, modelID string, horizon contracts.Horizon, triggeredBy string, force bool) *promotion.PromoteResult {
	f.lastForce = force
	f.lastTrigger = triggeredBy
	return f.promoteResult
}

func (f *fakePromoter) Rollback(ctx context.Context, horizon contracts.Horizon, reason, triggeredBy string) *promotion.RollbackResult {
	f.lastTrigger = triggeredBy
	return f.rollbackResult
}

type fakeSwitch struct {
	enabled bool
	sets    []bool
}

func (f *fakeSwitch) Enabled(ctx context.Context) bool { return f.enabled }

func (f *fakeSwitch) Set(ctx context.Context, enabled bool, triggeredBy, reason string) error {
	f.sets = append(f.sets, enabled)
	f.enabled = enabled
	return nil
}

type fakeAudit struct {
	entries []contracts.AuditLogEntry
}

func (f *fakeAudit) Recent(ctx context.Context, horizon contracts.Horizon, limit int) ([]contracts.AuditLogEntry, error) {
	return f.entries, nil
}

// muxRequest routes the request through gorilla/mux so path vars resolve
func muxRequest(t *testing.T, method, path string, body string, register func(r *mux.Router)) *httptest.ResponseRecorder {
	t.Helper()

	r := mux.NewRouter()
	register(r)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Lifecycle handler
// =============================================================================

func TestGetStatusIncludesLastReport(t *testing.T) {
	h := NewLifecycleHandler(
		&fakeGuard{pass: true},
		&fakePipeline{},
		&fakePointers{pointer: &contracts.ActiveModelPointer{
			Horizon:       contracts.Horizon7D,
			ActiveModelID: "mv_7d_active",
			HealthStatus:  contracts.HealthHealthy,
		}},
		&fakeReports{reports: []contracts.ShadowMonitorReport{{ID: "sr_latest", Decision: contracts.HealthHealthy}}},
		logger.NewNop(),
	)

	rec := muxRequest(t, http.MethodGet, "/api/v1/status/7d", "", func(r *mux.Router) {
		r.HandleFunc("/api/v1/status/{horizon}", h.GetStatus).Methods("GET")
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, contracts.Horizon7D, resp.Horizon)
	assert.True(t, resp.Guard.OverallPass)
	require.NotNil(t, resp.LastReport)
	assert.Equal(t, "sr_latest", resp.LastReport.ID)
}

func TestGetStatusRejectsUnknownHorizon(t *testing.T) {
	h := NewLifecycleHandler(&fakeGuard{}, &fakePipeline{}, &fakePointers{}, &fakeReports{}, logger.NewNop())

	rec := muxRequest(t, http.MethodGet, "/api/v1/status/90d", "", func(r *mux.Router) {
		r.HandleFunc("/api/v1/status/{horizon}", h.GetStatus).Methods("GET")
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrainBlockedReturnsConflict(t *testing.T) {
	h := NewLifecycleHandler(
		&fakeGuard{},
		&fakePipeline{result: &lifecycle.RunResult{
			Horizon: contracts.Horizon7D,
			Stage:   lifecycle.StageGuard,
			Guard:   contracts.GuardSnapshot{OverallPass: false, BlockReasons: []string{"cooldown"}},
		}},
		&fakePointers{},
		&fakeReports{},
		logger.NewNop(),
	)

	rec := muxRequest(t, http.MethodPost, "/api/v1/retrain/7d", "", func(r *mux.Router) {
		r.HandleFunc("/api/v1/retrain/{horizon}", h.Retrain).Methods("POST")
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// Admin handler
// =============================================================================

func adminFixture() (*AdminHandler, *fakePromoter, *fakeSwitch) {
	promoter := &fakePromoter{
		promoteResult:  &promotion.PromoteResult{Decision: "PROMOTED"},
		rollbackResult: &promotion.RollbackResult{Success: true},
	}
	killSwitch := &fakeSwitch{}
	h := NewAdminHandler(promoter, killSwitch, &fakeAudit{}, logger.NewNop())
	return h, promoter, killSwitch
}

func TestPromoteSuccess(t *testing.T) {
	h, promoter, _ := adminFixture()

	rec := muxRequest(t, http.MethodPost, "/api/v1/promote",
		`{"model_id":"mv_7d_new","horizon":"7d","force":true}`,
		func(r *mux.Router) {
			r.HandleFunc("/api/v1/promote", h.Promote).Methods("POST")
		})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, promoter.lastForce)
	assert.Equal(t, "api", promoter.lastTrigger)
}

func TestPromoteBlockedReturnsConflict(t *testing.T) {
	h, promoter, _ := adminFixture()
	promoter.promoteResult = &promotion.PromoteResult{
		Decision:       "BLOCKED",
		BlockedReasons: []promotion.BlockReason{promotion.BlockKillSwitch},
	}

	rec := muxRequest(t, http.MethodPost, "/api/v1/promote",
		`{"model_id":"mv_7d_new","horizon":"7d"}`,
		func(r *mux.Router) {
			r.HandleFunc("/api/v1/promote", h.Promote).Methods("POST")
		})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPromoteRequiresModelID(t *testing.T) {
	h, _, _ := adminFixture()

	rec := muxRequest(t, http.MethodPost, "/api/v1/promote",
		`{"horizon":"7d"}`,
		func(r *mux.Router) {
			r.HandleFunc("/api/v1/promote", h.Promote).Methods("POST")
		})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRollbackRequiresReason(t *testing.T) {
	h, _, _ := adminFixture()

	rec := muxRequest(t, http.MethodPost, "/api/v1/rollback",
		`{"horizon":"7d"}`,
		func(r *mux.Router) {
			r.HandleFunc("/api/v1/rollback", h.Rollback).Methods("POST")
		})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRollbackNoopReturnsConflict(t *testing.T) {
	h, promoter, _ := adminFixture()
	promoter.rollbackResult = &promotion.RollbackResult{Success: false, Reason: "no previous model"}

	rec := muxRequest(t, http.MethodPost, "/api/v1/rollback",
		`{"horizon":"7d","reason":"bad deploy"}`,
		func(r *mux.Router) {
			r.HandleFunc("/api/v1/rollback", h.Rollback).Methods("POST")
		})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestKillSwitchToggle(t *testing.T) {
	h, _, killSwitch := adminFixture()

	rec := muxRequest(t, http.MethodPost, "/api/v1/killswitch",
		`{"enabled":true,"reason":"incident response"}`,
		func(r *mux.Router) {
			r.HandleFunc("/api/v1/killswitch", h.SetKillSwitch).Methods("POST")
		})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{true}, killSwitch.sets)

	rec = muxRequest(t, http.MethodGet, "/api/v1/killswitch", "", func(r *mux.Router) {
		r.HandleFunc("/api/v1/killswitch", h.GetKillSwitch).Methods("GET")
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":true}`, rec.Body.String())
}

func TestAuditLogLimitValidation(t *testing.T) {
	h, _, _ := adminFixture()

	rec := muxRequest(t, http.MethodGet, "/api/v1/audit/7d?limit=9999", "", func(r *mux.Router) {
		r.HandleFunc("/api/v1/audit/{horizon}", h.GetAuditLog).Methods("GET")
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
