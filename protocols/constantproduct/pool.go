package constantproduct

import (
	"fmt"
	"math"

	"github.com/defistate/constantproduct-go/protocols/constantproduct/calculator"
)

// Pool is a two-asset constant-product (x * y = k) liquidity pool with a
// fee charged on the input side of every swap.
//
// A Pool is a plain mutable value with no internal locking. Callers that
// share one instance between goroutines must serialise calls to Swap.
type Pool struct {
	reserveA float64
	reserveB float64
	fee      float64
}

// SwapResult describes a priced and applied (or quoted) swap.
type SwapResult struct {
	Direction Direction `json:"direction"`
	AmountIn  float64   `json:"amountIn"`
	// AmountOut is denominated in the output token.
	AmountOut   float64 `json:"amountOut"`
	NewReserveA float64 `json:"newReserveA"`
	NewReserveB float64 `json:"newReserveB"`
	// EffectivePrice is output units received per input unit.
	EffectivePrice float64 `json:"effectivePrice"`
	// SlippagePercent is the loss of EffectivePrice against the pre-trade spot price, in percentage points.
	SlippagePercent float64 `json:"slippagePercent"`
}

// New returns a pool holding reserveA and reserveB with the given fee fraction
// (0.003 for 0.3%).
func New(reserveA, reserveB, fee float64) (*Pool, error) {
	if !calculator.ValidReserve(reserveA) {
		return nil, fmt.Errorf("%w: reserveA must be positive and finite, got %g", ErrInvalidParameter, reserveA)
	}
	if !calculator.ValidReserve(reserveB) {
		return nil, fmt.Errorf("%w: reserveB must be positive and finite, got %g", ErrInvalidParameter, reserveB)
	}
	if !calculator.ValidRatio(reserveA, reserveB) {
		return nil, fmt.Errorf("%w: reserve ratio %g/%g is out of float64 range", ErrInvalidParameter, reserveA, reserveB)
	}
	if !calculator.ValidFee(fee) {
		return nil, fmt.Errorf("%w: fee must be in [0, 1), got %g", ErrInvalidParameter, fee)
	}
	return &Pool{reserveA: reserveA, reserveB: reserveB, fee: fee}, nil
}

func (p *Pool) ReserveA() float64 { return p.reserveA }
func (p *Pool) ReserveB() float64 { return p.reserveB }
func (p *Pool) Fee() float64      { return p.fee }

// K returns the current reserve product.
func (p *Pool) K() float64 { return p.reserveA * p.reserveB }

// Clone returns an independent copy of the pool.
func (p *Pool) Clone() *Pool {
	c := *p
	return &c
}

// SpotPrice returns the pre-trade price of the input token for dir.
func (p *Pool) SpotPrice(dir Direction) (float64, error) {
	reserveIn, reserveOut, err := p.reserves(dir)
	if err != nil {
		return 0, err
	}
	return reserveOut / reserveIn, nil
}

// Swap prices amountIn of the input token selected by dir and applies the
// trade to the pool. The full amountIn, fee included, is credited to the
// input reserve. On error the pool is left untouched.
func (p *Pool) Swap(amountIn float64, dir Direction) (SwapResult, error) {
	res, err := p.price(amountIn, dir)
	if err != nil {
		return SwapResult{}, err
	}
	p.reserveA, p.reserveB = res.NewReserveA, res.NewReserveB
	return res, nil
}

// Quote returns what Swap would return without changing the pool.
func (p *Pool) Quote(amountIn float64, dir Direction) (SwapResult, error) {
	return p.price(amountIn, dir)
}

func (p *Pool) price(amountIn float64, dir Direction) (SwapResult, error) {
	if !(amountIn > 0) {
		return SwapResult{}, fmt.Errorf("%w: got %g", ErrInvalidAmount, amountIn)
	}
	reserveIn, reserveOut, err := p.reserves(dir)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn >= reserveIn {
		return SwapResult{}, fmt.Errorf("%w: amountIn (%g) is >= reserveIn (%g) for %s", ErrInsufficientLiquidity, amountIn, reserveIn, dir)
	}

	spot := reserveOut / reserveIn
	amountOut, err := calculator.GetAmountOut(amountIn, reserveIn, reserveOut, p.fee)
	if err != nil {
		// unreachable while the pool invariant holds
		return SwapResult{}, fmt.Errorf("%w: %v", ErrInsufficientLiquidity, err)
	}
	if !(amountOut > 0) {
		return SwapResult{}, fmt.Errorf("%w: amountIn (%g) is too small to produce any output", ErrInvalidAmount, amountIn)
	}

	newIn, newOut := reserveIn+amountIn, roundReserveOut(reserveIn, reserveOut, amountIn, amountOut)
	if !calculator.ValidRatio(newIn, newOut) {
		return SwapResult{}, fmt.Errorf("%w: reserves after the swap (%g, %g) are out of float64 range", ErrInsufficientLiquidity, newIn, newOut)
	}
	effective := calculator.EffectivePrice(amountIn, amountOut)

	res := SwapResult{
		Direction:       dir,
		AmountIn:        amountIn,
		AmountOut:       amountOut,
		EffectivePrice:  effective,
		SlippagePercent: calculator.SlippagePercent(spot, effective),
	}
	if dir == AtoB {
		res.NewReserveA, res.NewReserveB = newIn, newOut
	} else {
		res.NewReserveA, res.NewReserveB = newOut, newIn
	}
	return res, nil
}

// maxRoundingSteps bounds the ulp adjustment in roundReserveOut. The product
// of two correctly rounded sums is off by a handful of ulps at most.
const maxRoundingSteps = 16

// roundReserveOut returns reserveOut-amountOut, moved up by whole ulps when
// rounding of the two reserve updates would leave the product below
// reserveIn*reserveOut. Only trades near the resolution of the reserves are
// affected, and the result never exceeds reserveOut.
func roundReserveOut(reserveIn, reserveOut, amountIn, amountOut float64) float64 {
	k := reserveIn * reserveOut
	newIn, newOut := reserveIn+amountIn, reserveOut-amountOut
	if math.IsInf(k, 1) {
		return newOut
	}
	for i := 0; i < maxRoundingSteps && newIn*newOut < k && newOut < reserveOut; i++ {
		newOut = math.Nextafter(newOut, reserveOut)
	}
	return newOut
}

// reserves returns (reserveIn, reserveOut) for dir.
func (p *Pool) reserves(dir Direction) (float64, float64, error) {
	switch dir {
	case AtoB:
		return p.reserveA, p.reserveB, nil
	case BtoA:
		return p.reserveB, p.reserveA, nil
	default:
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidDirection, dir)
	}
}
