package constantproduct

// PoolState is a serialisable snapshot of a Pool.
type PoolState struct {
	ReserveA float64 `json:"reserveA" yaml:"reserveA"`
	ReserveB float64 `json:"reserveB" yaml:"reserveB"`
	Fee      float64 `json:"fee" yaml:"fee"`
}

// K returns the reserve product of the snapshot.
func (s PoolState) K() float64 {
	return s.ReserveA * s.ReserveB
}

// State returns a snapshot of the pool.
func (p *Pool) State() PoolState {
	return PoolState{ReserveA: p.reserveA, ReserveB: p.reserveB, Fee: p.fee}
}

// NewFromState rebuilds a validated Pool from a snapshot.
func NewFromState(s PoolState) (*Pool, error) {
	return New(s.ReserveA, s.ReserveB, s.Fee)
}
