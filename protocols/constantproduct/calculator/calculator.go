package calculator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidAmount is returned when an input/output amount is non-positive or not a number.
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrInvalidReserves is returned when a reserve is non-positive, infinite or not a number.
	ErrInvalidReserves = errors.New("reserves must be positive and finite")
	// ErrInvalidFee is returned when the fee fraction falls outside [0, 1).
	ErrInvalidFee = errors.New("fee must be in [0, 1)")
	// ErrInsufficientLiquidity is returned when a trade would drain or invert a reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
)

// ValidReserve reports whether r can serve as a pool reserve.
func ValidReserve(r float64) bool {
	return r > 0 && !math.IsInf(r, 1)
}

// ValidRatio reports whether both reserve ratios of a pool are finite and
// non-zero, so spot prices in either direction can be formed.
func ValidRatio(reserveA, reserveB float64) bool {
	ab, ba := reserveB/reserveA, reserveA/reserveB
	return ab > 0 && ba > 0 && !math.IsInf(ab, 1) && !math.IsInf(ba, 1)
}

// ValidFee reports whether fee lies in [0, 1). NaN is rejected.
func ValidFee(fee float64) bool {
	return fee >= 0 && fee < 1
}

func checkPool(reserveIn, reserveOut, fee float64) error {
	if !ValidReserve(reserveIn) || !ValidReserve(reserveOut) {
		return fmt.Errorf("%w: reserveIn=%g reserveOut=%g", ErrInvalidReserves, reserveIn, reserveOut)
	}
	if !ValidFee(fee) {
		return fmt.Errorf("%w: got %g", ErrInvalidFee, fee)
	}
	return nil
}

// AmountInWithFee returns the part of amountIn that takes part in pricing.
// The remainder stays in the pool.
func AmountInWithFee(amountIn, fee float64) float64 {
	return amountIn * (1 - fee)
}

// GetAmountOut returns the output of trading amountIn against the given reserves
// under x*y=k with the fee charged on input:
//
//	amountOut = reserveOut - k / (reserveIn + amountIn*(1-fee))
//
// It is evaluated as amountInWithFee*reserveOut / (reserveIn+amountInWithFee),
// which is the same quantity without the cancellation of the subtraction.
func GetAmountOut(amountIn, reserveIn, reserveOut, fee float64) (float64, error) {
	if !(amountIn > 0) {
		return 0, fmt.Errorf("%w: amountIn=%g", ErrInvalidAmount, amountIn)
	}
	if err := checkPool(reserveIn, reserveOut, fee); err != nil {
		return 0, err
	}
	if amountIn >= reserveIn {
		return 0, fmt.Errorf("%w: amountIn (%g) is >= reserveIn (%g)", ErrInsufficientLiquidity, amountIn, reserveIn)
	}

	withFee := AmountInWithFee(amountIn, fee)
	return withFee * reserveOut / (reserveIn + withFee), nil
}

// GetAmountIn returns the input needed to receive exactly amountOut. It is the
// inverse of GetAmountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut, fee float64) (float64, error) {
	if !(amountOut > 0) {
		return 0, fmt.Errorf("%w: amountOut=%g", ErrInvalidAmount, amountOut)
	}
	if err := checkPool(reserveIn, reserveOut, fee); err != nil {
		return 0, err
	}
	if amountOut >= reserveOut {
		return 0, fmt.Errorf("%w: requested amountOut (%g) is >= reserveOut (%g)", ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	// (reserveIn + x) * (reserveOut - amountOut) = reserveIn * reserveOut
	withFee := reserveIn * amountOut / (reserveOut - amountOut)
	return withFee / (1 - fee), nil
}

// SpotPrice is the marginal price of the input token in output token units.
func SpotPrice(reserveIn, reserveOut float64) (float64, error) {
	if !ValidReserve(reserveIn) || !ValidReserve(reserveOut) {
		return 0, fmt.Errorf("%w: reserveIn=%g reserveOut=%g", ErrInvalidReserves, reserveIn, reserveOut)
	}
	return reserveOut / reserveIn, nil
}

// Quote converts amountA at the current reserve ratio, ignoring curve and fee.
func Quote(amountA, reserveA, reserveB float64) (float64, error) {
	if !(amountA > 0) {
		return 0, fmt.Errorf("%w: amountA=%g", ErrInvalidAmount, amountA)
	}
	if !ValidReserve(reserveA) || !ValidReserve(reserveB) {
		return 0, fmt.Errorf("%w: reserveA=%g reserveB=%g", ErrInvalidReserves, reserveA, reserveB)
	}
	return amountA * reserveB / reserveA, nil
}

// EffectivePrice is the realised output per unit of input.
func EffectivePrice(amountIn, amountOut float64) float64 {
	return amountOut / amountIn
}

// SlippagePercent is the degradation of effectivePrice relative to spotPrice,
// in percentage points. It is not clamped.
func SlippagePercent(spotPrice, effectivePrice float64) float64 {
	return (spotPrice - effectivePrice) / spotPrice * 100
}
