package simulation

import (
	"github.com/defistate/constantproduct-go/protocols/constantproduct"
)

// CurveParams describes a slippage sweep. Every point is priced against a
// fresh pool built from Pool, so points are independent of each other.
type CurveParams struct {
	Pool      constantproduct.PoolState
	Direction constantproduct.Direction
	// AmountIn runs over [Start, Stop) in increments of Step.
	Start float64
	Stop  float64
	Step  float64
}

// CurvePoint is one sample of the sweep.
type CurvePoint struct {
	// TradeSizePercent is amountIn as a percentage of the input reserve.
	TradeSizePercent float64                    `json:"tradeSizePercent"`
	Result           constantproduct.SwapResult `json:"result"`
}

// Sample is a single swap priced against a fresh pool, sized as a fraction of
// the input reserve.
type Sample struct {
	Fraction float64                    `json:"fraction"`
	Result   constantproduct.SwapResult `json:"result"`
}

// Trade is one step of a sequential run.
type Trade struct {
	AmountIn  float64                   `json:"amountIn" yaml:"amountIn"`
	Direction constantproduct.Direction `json:"direction" yaml:"direction"`
}

// SequenceReport is the outcome of applying trades one after another to the
// same pool.
type SequenceReport struct {
	Initial constantproduct.PoolState    `json:"initial"`
	Final   constantproduct.PoolState    `json:"final"`
	Results []constantproduct.SwapResult `json:"results"`
	Diff    constantproduct.PoolDiff     `json:"diff"`
}

// RoundTripReport is a swap immediately followed by swapping its full output back.
type RoundTripReport struct {
	Out  constantproduct.SwapResult `json:"out"`
	Back constantproduct.SwapResult `json:"back"`
	// Loss is the original amountIn minus what came back, in input token units.
	Loss float64                  `json:"loss"`
	Diff constantproduct.PoolDiff `json:"diff"`
}
