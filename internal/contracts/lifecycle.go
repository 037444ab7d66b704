package contracts

import "fmt"

// modelTransitions is the status DAG; anything not listed is illegal.
// CANDIDATE → APPROVED/REJECTED, APPROVED → ACTIVE (승격을 통해서만),
// ACTIVE → INACTIVE/ROLLED_BACK (이후 승격 또는 롤백을 통해서만)
var modelTransitions = map[ModelStatus][]ModelStatus{
	ModelCandidate:  {ModelApproved, ModelRejected},
	ModelApproved:   {ModelActive},
	ModelActive:     {ModelInactive, ModelRolledBack},
	ModelInactive:   {ModelActive}, // 롤백으로 복귀 가능
	ModelRejected:   {},
	ModelRolledBack: {},
}

// CanTransition returns true when a model status transition is allowed
func CanTransition(from, to ModelStatus) bool {
	allowed, ok := modelTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition ensures a model status transition is legal
func ValidateTransition(from, to ModelStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("invalid model status transition %q -> %q", from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("model status transition %q -> %q not allowed", from, to)
	}
	return nil
}
