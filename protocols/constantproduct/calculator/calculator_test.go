package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name           string
		amountIn       float64
		reserveIn      float64
		reserveOut     float64
		fee            float64
		expectedAmount float64
		expectedErr    error
	}{
		{
			name:           "Standard Swap, balanced pool",
			amountIn:       10,
			reserveIn:      1000,
			reserveOut:     1000,
			fee:            0.003,
			expectedAmount: 9.871580343970614,
		},
		{
			name:           "Skewed reserves",
			amountIn:       1,
			reserveIn:      100,
			reserveOut:     50,
			fee:            0.003,
			expectedAmount: 0.4935790171985306,
		},
		{
			name:           "Zero fee matches x*y=k exactly",
			amountIn:       250,
			reserveIn:      1000,
			reserveOut:     1000,
			fee:            0,
			expectedAmount: 200,
		},
		{
			name:        "Invalid Input: zero amount",
			amountIn:    0,
			reserveIn:   1000,
			reserveOut:  1000,
			fee:         0.003,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "Invalid Input: NaN amount",
			amountIn:    math.NaN(),
			reserveIn:   1000,
			reserveOut:  1000,
			fee:         0.003,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "Invalid State: zero reserve",
			amountIn:    1,
			reserveIn:   0,
			reserveOut:  1000,
			fee:         0.003,
			expectedErr: ErrInvalidReserves,
		},
		{
			name:        "Invalid State: fee of one",
			amountIn:    1,
			reserveIn:   1000,
			reserveOut:  1000,
			fee:         1,
			expectedErr: ErrInvalidFee,
		},
		{
			name:        "Insufficient Liquidity: amountIn equals reserveIn",
			amountIn:    1000,
			reserveIn:   1000,
			reserveOut:  1000,
			fee:         0.003,
			expectedErr: ErrInsufficientLiquidity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountOut, err := GetAmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut, tc.fee)

			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expectedAmount, amountOut, 1e-12)
		})
	}
}

func TestGetAmountOut_MatchesSubtractionForm(t *testing.T) {
	for _, amountIn := range []float64{0.01, 1, 10, 100, 499, 999} {
		reserveIn, reserveOut, fee := 1000.0, 2500.0, 0.003
		amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut, fee)
		require.NoError(t, err)

		k := reserveIn * reserveOut
		expected := reserveOut - k/(reserveIn+amountIn*(1-fee))
		assert.InEpsilon(t, expected, amountOut, 1e-9, "amountIn=%g", amountIn)
	}
}

func TestGetAmountIn(t *testing.T) {
	testCases := []struct {
		name        string
		amountOut   float64
		reserveIn   float64
		reserveOut  float64
		fee         float64
		expectedErr error
	}{
		{name: "Standard Swap", amountOut: 9.871580343970614, reserveIn: 1000, reserveOut: 1000, fee: 0.003},
		{name: "Large trade, skewed pool", amountOut: 20, reserveIn: 100, reserveOut: 50, fee: 0.01},
		{name: "Invalid Input: negative amountOut", amountOut: -1, reserveIn: 100, reserveOut: 50, fee: 0.003, expectedErr: ErrInvalidAmount},
		{name: "Insufficient Liquidity: amountOut equals reserveOut", amountOut: 50, reserveIn: 100, reserveOut: 50, fee: 0.003, expectedErr: ErrInsufficientLiquidity},
		{name: "Invalid State: negative fee", amountOut: 1, reserveIn: 100, reserveOut: 50, fee: -0.1, expectedErr: ErrInvalidFee},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountIn, err := GetAmountIn(tc.amountOut, tc.reserveIn, tc.reserveOut, tc.fee)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)

			// feeding the computed input back must reproduce the requested output
			amountOut, err := GetAmountOut(amountIn, tc.reserveIn, tc.reserveOut, tc.fee)
			require.NoError(t, err)
			assert.InEpsilon(t, tc.amountOut, amountOut, 1e-9)
		})
	}
}

func TestSpotPriceAndQuote(t *testing.T) {
	price, err := SpotPrice(1000, 3_000_000)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, price)

	_, err = SpotPrice(-1, 1)
	assert.ErrorIs(t, err, ErrInvalidReserves)

	quoted, err := Quote(2, 1000, 3_000_000)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, quoted)

	_, err = Quote(0, 1000, 1000)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestValidRatio(t *testing.T) {
	assert.True(t, ValidRatio(1000, 1000))
	assert.True(t, ValidRatio(1, 5e18))
	assert.True(t, ValidRatio(1e-150, 1e150))

	assert.False(t, ValidRatio(1e-300, 1e300), "reserveB/reserveA overflows")
	assert.False(t, ValidRatio(1e300, 1e-300), "reserveA/reserveB overflows")
	assert.False(t, ValidRatio(5e-324, 1e10), "reserveA/reserveB underflows to zero")

	// the spot price of such a pool would be +Inf and its slippage NaN
	assert.True(t, math.IsNaN(SlippagePercent(1e300/1e-300, 1)))
}

func TestSlippagePercent(t *testing.T) {
	assert.Equal(t, 0.0, SlippagePercent(2, 2))
	assert.InDelta(t, 25.0, SlippagePercent(2, 1.5), 1e-12)
	// better-than-spot fills are reported as negative, not clamped
	assert.InDelta(t, -10.0, SlippagePercent(1, 1.1), 1e-12)
}

// --- Benchmarks ---

var result float64

func BenchmarkGetAmountOut(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		amountOut, _ := GetAmountOut(1, 2_000_000, 1_000, 0.003)
		result = amountOut
	}
}

func BenchmarkGetAmountIn(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		amountIn, _ := GetAmountIn(1_994, 1_000, 2_000_000, 0.003)
		result = amountIn
	}
}
