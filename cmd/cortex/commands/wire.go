package commands

import (
	"fmt"

	"github.com/wonny/cortex/backend/internal/audit"
	"github.com/wonny/cortex/backend/internal/blend"
	"github.com/wonny/cortex/backend/internal/dataset"
	"github.com/wonny/cortex/backend/internal/drift"
	"github.com/wonny/cortex/backend/internal/evaluation"
	"github.com/wonny/cortex/backend/internal/guard"
	"github.com/wonny/cortex/backend/internal/lifecycle"
	"github.com/wonny/cortex/backend/internal/mlservice"
	"github.com/wonny/cortex/backend/internal/monitor"
	"github.com/wonny/cortex/backend/internal/promotion"
	"github.com/wonny/cortex/backend/internal/safety"
	"github.com/wonny/cortex/backend/internal/samples"
	"github.com/wonny/cortex/backend/internal/training"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/database"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// app holds every wired component one process can need.
// ⭐ SSOT: 의존성 조립은 이 파일에서만 — 커맨드는 여기서 꺼내 쓰기만 한다
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client
	cache *redis.Cache
	rec   *metrics.Recorder

	auditRepo   *audit.Repository
	recorder    *audit.Recorder
	samplesRepo *samples.Repository
	driftSource *drift.Source
	killSwitch  *safety.KillSwitch
	compute     *mlservice.Client

	datasetRepo *dataset.Repository
	framer      *dataset.Framer
	loader      *dataset.Loader

	modelRepo    *training.Repository
	orchestrator *training.Orchestrator

	reportRepo *evaluation.Repository
	gate       *evaluation.Gate

	pointerRepo *promotion.PointerRepository
	promoter    *promotion.Service

	shadowRepo *monitor.Repository
	monitor    *monitor.Monitor

	guard    *guard.Chain
	pipeline *lifecycle.Pipeline
	blendSvc *blend.Service
}

// bootstrap loads config and wires the full component graph
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		redis: redisClient,
		cache: redis.NewCache(redisClient, "cortex"),
		rec:   metrics.New(),
	}

	lc := &cfg.Lifecycle

	// Foundation
	a.auditRepo = audit.NewRepository(db.Pool)
	a.recorder = audit.NewRecorder(a.auditRepo, log.Zerolog())
	a.samplesRepo = samples.NewRepository(db.Pool)
	a.driftSource = drift.NewSource(db.Pool, a.cache, log.Zerolog())
	a.killSwitch = safety.NewKillSwitch(db.Pool, a.cache, a.recorder, log.Zerolog())
	a.compute = mlservice.NewClient(cfg, log, a.rec).
		WithRateLimiter(redis.NewRateLimiter(redisClient, "cortex"))

	// Dataset
	a.datasetRepo = dataset.NewRepository(db.Pool)
	a.framer = dataset.NewFramer(a.samplesRepo, a.datasetRepo, a.recorder, lc, log)
	a.loader = dataset.NewLoader(a.samplesRepo, lc)

	// Training
	a.modelRepo = training.NewRepository(db.Pool)
	a.orchestrator = training.NewOrchestrator(a.datasetRepo, a.loader, a.modelRepo, a.compute, a.recorder, a.rec, log)

	// Evaluation
	a.reportRepo = evaluation.NewRepository(db.Pool)
	a.gate = evaluation.NewGate(a.modelRepo, a.datasetRepo, a.loader, a.reportRepo, a.compute, a.recorder, lc, log)

	// Promotion
	a.pointerRepo = promotion.NewPointerRepository(db.Pool)
	a.promoter = promotion.NewService(a.modelRepo, a.pointerRepo, a.killSwitch, a.driftSource, a.recorder, a.cache, a.rec, lc, log)

	// Shadow monitor
	a.shadowRepo = monitor.NewRepository(db.Pool)
	a.monitor = monitor.NewMonitor(a.samplesRepo, a.compute, a.modelRepo, a.pointerRepo, a.shadowRepo,
		a.promoter, a.recorder, a.cache, a.rec, lc, log)

	// Guard + pipeline
	a.guard = guard.NewChain(a.killSwitch, a.samplesRepo, a.modelRepo, a.datasetRepo, a.auditRepo,
		a.driftSource, a.recorder, a.rec, lc, log)
	a.pipeline = lifecycle.NewPipeline(a.guard, a.framer, a.orchestrator, a.gate, cfg, log)

	// Inference-path blender
	a.blendSvc = blend.NewService(blend.NewBlender(lc), a.pointerRepo, a.killSwitch, a.driftSource,
		a.compute, a.cache, a.rec, log)

	return a, nil
}

// Close releases shared connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
