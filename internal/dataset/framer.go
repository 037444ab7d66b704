package dataset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/logger"
)

// =============================================================================
// Dataset Framer
// =============================================================================
// ⭐ SSOT: 학습/평가 데이터셋 구성 규칙은 전부 여기
// 표본 선택 → 라벨링/가중치 → 시간 분할 → 동결(content hash)

// Label weights. 거짓 양성이 거짓 음성보다 비싸다 — 오답에 패널티 가중
const (
	WeightCorrect        = 1.0
	WeightDelayedCorrect = 0.8
	WeightIncorrect      = 1.5
)

// VersionStore persists frozen dataset versions (의존성 역전)
type VersionStore interface {
	InsertFrozen(ctx context.Context, v *contracts.DatasetVersion) error
	GetByHash(ctx context.Context, horizon contracts.Horizon, contentHash string) (*contracts.DatasetVersion, error)
}

// Framer builds frozen, reproducible training datasets
type Framer struct {
	samples  contracts.SampleStore
	versions VersionStore
	audit    contracts.AuditSink
	cfg      *config.LifecycleConfig
	log      *logger.Logger
}

func NewFramer(samples contracts.SampleStore, versions VersionStore, audit contracts.AuditSink, cfg *config.LifecycleConfig, log *logger.Logger) *Framer {
	return &Framer{
		samples:  samples,
		versions: versions,
		audit:    audit,
		cfg:      cfg,
		log:      log.WithField("component", "dataset_framer"),
	}
}

// Frame selects eligible samples, labels them, splits by time, and freezes
// the result as an immutable DatasetVersion.
// 같은 표본 집합 + 같은 필터를 다시 동결하면 기존 버전을 그대로 반환 (멱등)
func (f *Framer) Frame(ctx context.Context, horizon contracts.Horizon) (*contracts.TrainingDataset, error) {
	if !horizon.Valid() {
		return nil, fmt.Errorf("invalid horizon: %s", horizon)
	}

	filter := contracts.SampleFilter{
		Horizon:      horizon,
		MinQuality:   f.cfg.MinQualityScore,
		OnlyResolved: true,
	}

	raw, err := f.samples.QueryByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}

	rows, dist := LabelSamples(raw)
	if len(rows) < f.cfg.MinSamples {
		return nil, fmt.Errorf("insufficient labeled samples: %d < %d", len(rows), f.cfg.MinSamples)
	}
	if dist.Positive == 0 || dist.Negative == 0 {
		return nil, fmt.Errorf("degenerate class distribution: pos=%d neg=%d", dist.Positive, dist.Negative)
	}

	// 시간순 정렬 후 분할 — 무작위 셔플 절대 금지 (시간 누수)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	train, eval := splitByTime(rows, f.cfg.TrainSplitRatio)
	if len(eval) == 0 {
		return nil, fmt.Errorf("empty eval partition after split (n=%d, ratio=%.2f)", len(rows), f.cfg.TrainSplitRatio)
	}

	sampleIDs := make([]string, len(rows))
	for i, r := range rows {
		sampleIDs[i] = r.SampleID
	}
	contentHash := ContentHash(sampleIDs, filter)

	// 동일 내용이면 기존 동결본 재사용
	if existing, err := f.versions.GetByHash(ctx, horizon, contentHash); err == nil && existing != nil {
		f.log.WithFields(map[string]interface{}{
			"dataset_id": existing.ID,
			"horizon":    string(horizon),
		}).Info("Dataset content unchanged, reusing frozen version")
		return &contracts.TrainingDataset{Version: existing, Train: train, Eval: eval}, nil
	}

	schemaHash := SchemaHash(FeatureNames(rows[0].Features))

	version := &contracts.DatasetVersion{
		ID:                fmt.Sprintf("ds_%s_%s", horizon, contentHash[:12]),
		Horizon:           horizon,
		SampleIDs:         sampleIDs,
		Filters:           filter,
		ContentHash:       contentHash,
		FeatureSchemaHash: schemaHash,
		ClassDistribution: dist,
		TimeRange: contracts.TimeRange{
			From: rows[0].Timestamp,
			To:   rows[len(rows)-1].Timestamp,
		},
		Status:   contracts.DatasetFrozen,
		FrozenAt: time.Now(),
	}

	if err := f.versions.InsertFrozen(ctx, version); err != nil {
		return nil, fmt.Errorf("freeze dataset version: %w", err)
	}

	f.audit.Record(ctx, contracts.AuditLogEntry{
		EventType:        contracts.AuditDatasetFrozen,
		Horizon:          horizon,
		DatasetVersionID: version.ID,
		TriggeredBy:      "system",
		Details: map[string]interface{}{
			"dataset_id":    version.ID,
			"content_hash":  contentHash,
			"schema_hash":   schemaHash,
			"sample_count":  len(rows),
			"positive":      dist.Positive,
			"negative":      dist.Negative,
			"train_samples": len(train),
			"eval_samples":  len(eval),
		},
	})

	f.log.WithFields(map[string]interface{}{
		"dataset_id": version.ID,
		"samples":    len(rows),
		"train":      len(train),
		"eval":       len(eval),
	}).Info("Dataset frozen")

	return &contracts.TrainingDataset{Version: version, Train: train, Eval: eval}, nil
}

// LabelSamples converts raw samples to labeled rows.
// AMBIGUOUS / NON_ACTIONABLE은 라벨 없이 탈락 — 0으로 뭉개지 않는다
func LabelSamples(samples []contracts.Sample) ([]contracts.LabeledRow, contracts.ClassDistribution) {
	rows := make([]contracts.LabeledRow, 0, len(samples))
	var dist contracts.ClassDistribution

	for _, s := range samples {
		if !s.Labelable() {
			continue
		}

		var label int
		var weight float64
		switch s.Outcome {
		case contracts.OutcomeCorrect:
			label, weight = 1, WeightCorrect
			dist.Positive++
		case contracts.OutcomeDelayedCorrect:
			label, weight = 1, WeightDelayedCorrect
			dist.Positive++
		case contracts.OutcomeIncorrect:
			label, weight = 0, WeightIncorrect
			dist.Negative++
		default:
			continue
		}

		rows = append(rows, contracts.LabeledRow{
			SampleID:  s.ID,
			Features:  BuildFeatures(s),
			Label:     label,
			Weight:    weight,
			Timestamp: s.SnapshotAt,
		})
	}

	return rows, dist
}

// splitByTime cuts time-ordered rows at the ratio boundary.
// ⭐ 불변식: max(train.ts) < min(eval.ts) — 경계에 같은 타임스탬프가 걸치면
// 그 타임스탬프 전체를 train 쪽으로 밀어낸다
func splitByTime(rows []contracts.LabeledRow, ratio float64) (train, eval []contracts.LabeledRow) {
	cut := int(float64(len(rows)) * ratio)
	if cut >= len(rows) {
		cut = len(rows) - 1
	}
	if cut < 1 {
		cut = 1
	}

	// 경계 타임스탬프 중복 처리
	boundary := rows[cut-1].Timestamp
	for cut < len(rows) && rows[cut].Timestamp.Equal(boundary) {
		cut++
	}

	return rows[:cut], rows[cut:]
}
