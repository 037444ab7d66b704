package dataset

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
)

// SampleFetcher loads samples by id (의존성 역전)
type SampleFetcher interface {
	GetByIDs(ctx context.Context, ids []string) ([]contracts.Sample, error)
}

// Loader rebuilds the labeled rows of a frozen dataset version.
// 동결 당시와 같은 순수 함수들로 재구성하므로 결과도 동일
type Loader struct {
	fetcher SampleFetcher
	cfg     *config.LifecycleConfig
}

func NewLoader(fetcher SampleFetcher, cfg *config.LifecycleConfig) *Loader {
	return &Loader{fetcher: fetcher, cfg: cfg}
}

// LoadRows reconstructs train/eval splits for a frozen version
func (l *Loader) LoadRows(ctx context.Context, version *contracts.DatasetVersion) (*contracts.TrainingDataset, error) {
	raw, err := l.fetcher.GetByIDs(ctx, version.SampleIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch samples: %w", err)
	}
	if len(raw) != len(version.SampleIDs) {
		return nil, fmt.Errorf("dataset %s references %d samples, found %d",
			version.ID, len(version.SampleIDs), len(raw))
	}

	rows, _ := LabelSamples(raw)
	if len(rows) != len(version.SampleIDs) {
		return nil, fmt.Errorf("dataset %s: %d samples no longer labelable", version.ID, len(version.SampleIDs)-len(rows))
	}

	// 동결 시점과 스키마가 달라졌으면 그 모델은 재현 불가
	schemaHash := SchemaHash(FeatureNames(rows[0].Features))
	if schemaHash != version.FeatureSchemaHash {
		return nil, fmt.Errorf("dataset %s: feature schema changed since freeze", version.ID)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	train, eval := splitByTime(rows, l.cfg.TrainSplitRatio)
	return &contracts.TrainingDataset{Version: version, Train: train, Eval: eval}, nil
}
