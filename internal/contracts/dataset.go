package contracts

import (
	"fmt"
	"time"
)

// DatasetStatus is the lifecycle state of a frozen dataset
type DatasetStatus string

const (
	DatasetFrozen  DatasetStatus = "FROZEN"  // 동결됨, 아직 미사용
	DatasetUsed    DatasetStatus = "USED"    // 모델 학습에 사용됨
	DatasetExpired DatasetStatus = "EXPIRED" // 보존 기간 경과
)

// Valid reports whether the status is a known dataset state
func (s DatasetStatus) Valid() bool {
	switch s {
	case DatasetFrozen, DatasetUsed, DatasetExpired:
		return true
	default:
		return false
	}
}

// ClassDistribution is the positive/negative label split of a dataset
type ClassDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// Total returns the labeled sample count
func (c ClassDistribution) Total() int {
	return c.Positive + c.Negative
}

// TimeRange is the closed interval covered by a dataset
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DatasetVersion is an immutable frozen selection of samples
// ⭐ SSOT: content hash가 같으면 같은 선택 — id는 해시에서 파생됨
type DatasetVersion struct {
	ID                string            `json:"id"`
	Horizon           Horizon           `json:"horizon"`
	SampleIDs         []string          `json:"sample_ids"`
	Filters           SampleFilter      `json:"filters"`
	ContentHash       string            `json:"content_hash"`
	FeatureSchemaHash string            `json:"feature_schema_hash"`
	ClassDistribution ClassDistribution `json:"class_distribution"`
	TimeRange         TimeRange         `json:"time_range"`
	Status            DatasetStatus     `json:"status"`
	FrozenAt          time.Time         `json:"frozen_at"`
}

// LabeledRow is one sample after labeling and weighting
type LabeledRow struct {
	SampleID  string             `json:"sample_id"`
	Features  map[string]float64 `json:"features"`
	Label     int                `json:"label"`  // 1 = 판단 정확, 0 = 판단 오류
	Weight    float64            `json:"weight"` // 비대칭 가중치
	Timestamp time.Time          `json:"timestamp"`
}

// TrainingDataset is a frozen dataset materialized into time-ordered splits
type TrainingDataset struct {
	Version *DatasetVersion `json:"version"`
	Train   []LabeledRow    `json:"train"`
	Eval    []LabeledRow    `json:"eval"`
}

// ValidateSplit enforces the no-leakage invariant:
// max(train.timestamp) < min(eval.timestamp)
func (d *TrainingDataset) ValidateSplit() error {
	if len(d.Train) == 0 || len(d.Eval) == 0 {
		return fmt.Errorf("dataset %s: both splits must be non-empty (train=%d eval=%d)",
			d.Version.ID, len(d.Train), len(d.Eval))
	}

	maxTrain := d.Train[0].Timestamp
	for _, row := range d.Train {
		if row.Timestamp.After(maxTrain) {
			maxTrain = row.Timestamp
		}
	}

	minEval := d.Eval[0].Timestamp
	for _, row := range d.Eval {
		if row.Timestamp.Before(minEval) {
			minEval = row.Timestamp
		}
	}

	if !maxTrain.Before(minEval) {
		return fmt.Errorf("dataset %s: time leakage, max(train)=%s >= min(eval)=%s",
			d.Version.ID, maxTrain.Format(time.RFC3339), minEval.Format(time.RFC3339))
	}
	return nil
}
