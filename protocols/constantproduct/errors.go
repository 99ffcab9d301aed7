package constantproduct

import "errors"

var (
	// ErrInvalidParameter is returned by New for a non-positive reserve or a fee outside [0, 1).
	ErrInvalidParameter = errors.New("invalid pool parameter")
	// ErrInvalidAmount is returned when a swap amount is zero, negative or not a number.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInvalidDirection is returned for a Direction other than AtoB or BtoA.
	ErrInvalidDirection = errors.New("invalid trade direction")
	// ErrInsufficientLiquidity is returned when amountIn is >= the input-side reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
)
