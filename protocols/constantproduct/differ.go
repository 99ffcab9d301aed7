package constantproduct

import "fmt"

// PoolDiff describes how a pool moved between two snapshots.
type PoolDiff struct {
	DeltaA  float64 `json:"deltaA,omitempty"`
	DeltaB  float64 `json:"deltaB,omitempty"`
	KBefore float64 `json:"kBefore"`
	KAfter  float64 `json:"kAfter"`
	// KGrowth is (KAfter - KBefore) / KBefore.
	KGrowth float64 `json:"kGrowth"`
	// FeeChanged is set when the two snapshots carry different fees; Fee is
	// then the new fee.
	FeeChanged bool    `json:"feeChanged,omitempty"`
	Fee        float64 `json:"fee,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d PoolDiff) IsEmpty() bool {
	return d.DeltaA == 0 && d.DeltaB == 0 && !d.FeeChanged
}

// Differ compares two snapshots of the same pool. Reserve deltas are new
// minus old, so a swap AtoB shows a positive DeltaA and a negative DeltaB.
func Differ(old, new PoolState) PoolDiff {
	d := PoolDiff{
		DeltaA:     new.ReserveA - old.ReserveA,
		DeltaB:     new.ReserveB - old.ReserveB,
		KBefore:    old.K(),
		KAfter:     new.K(),
		FeeChanged: old.Fee != new.Fee,
	}
	if d.FeeChanged {
		d.Fee = new.Fee
	}
	if d.KBefore != 0 {
		d.KGrowth = (d.KAfter - d.KBefore) / d.KBefore
	}
	return d
}

// Patcher applies diff to prev and returns the resulting snapshot. The
// result must describe a valid pool.
func Patcher(prev PoolState, diff PoolDiff) (PoolState, error) {
	next := PoolState{
		ReserveA: prev.ReserveA + diff.DeltaA,
		ReserveB: prev.ReserveB + diff.DeltaB,
		Fee:      prev.Fee,
	}
	if diff.FeeChanged {
		next.Fee = diff.Fee
	}
	if _, err := NewFromState(next); err != nil {
		return PoolState{}, fmt.Errorf("patched state: %w", err)
	}
	return next, nil
}
