package contracts

import "fmt"

// Horizon identifies an independent forecast window
// ⭐ SSOT: horizon별로 모델 수명주기가 완전히 분리됨
type Horizon string

const (
	Horizon7D  Horizon = "7d"
	Horizon30D Horizon = "30d"
)

// AllHorizons lists every supported horizon in scheduling order
func AllHorizons() []Horizon {
	return []Horizon{Horizon7D, Horizon30D}
}

// Valid reports whether the horizon is supported
func (h Horizon) Valid() bool {
	switch h {
	case Horizon7D, Horizon30D:
		return true
	default:
		return false
	}
}

// ParseHorizon converts a string to a Horizon
func ParseHorizon(s string) (Horizon, error) {
	h := Horizon(s)
	if !h.Valid() {
		return "", fmt.Errorf("unsupported horizon %q", s)
	}
	return h, nil
}

// DriftLevel is the ordinal drift signal reported per horizon
type DriftLevel string

const (
	DriftLow      DriftLevel = "LOW"
	DriftMedium   DriftLevel = "MEDIUM"
	DriftHigh     DriftLevel = "HIGH"
	DriftCritical DriftLevel = "CRITICAL"
)

// driftRank 순서 비교용 (LOW < MEDIUM < HIGH < CRITICAL)
var driftRank = map[DriftLevel]int{
	DriftLow:      0,
	DriftMedium:   1,
	DriftHigh:     2,
	DriftCritical: 3,
}

// Valid reports whether the drift level is one of the four ordinals
func (d DriftLevel) Valid() bool {
	_, ok := driftRank[d]
	return ok
}

// Above reports whether d is strictly above the given ceiling
func (d DriftLevel) Above(ceiling DriftLevel) bool {
	return driftRank[d] > driftRank[ceiling]
}

// AtLeast reports whether d is at or above the given level
func (d DriftLevel) AtLeast(level DriftLevel) bool {
	return driftRank[d] >= driftRank[level]
}

// ParseDriftLevel converts a string to a DriftLevel
func ParseDriftLevel(s string) (DriftLevel, error) {
	d := DriftLevel(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown drift level %q", s)
	}
	return d, nil
}
