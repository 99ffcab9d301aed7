package simulation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/constantproduct-go/chains"
	"github.com/defistate/constantproduct-go/protocols/constantproduct"
)

// the runner logs through the same interface as the chain loaders
var _ chains.Logger = (*slog.Logger)(nil)

var defaultPool = constantproduct.PoolState{ReserveA: 1000, ReserveB: 1000, Fee: 0.003}

func newTestRunner(t *testing.T, workers int) (*Runner, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r, err := NewRunner(&Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: reg,
		Workers:  workers,
	})
	require.NoError(t, err)
	return r, reg
}

func TestNewRunner_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewRunner(&Config{Logger: logger})
	assert.Error(t, err, "nil registry must be rejected")

	_, err = NewRunner(&Config{Registry: prometheus.NewRegistry()})
	assert.Error(t, err, "nil logger must be rejected")

	_, err = NewRunner(&Config{Logger: logger, Registry: prometheus.NewRegistry(), Workers: -1})
	assert.Error(t, err)

	// registering twice against the same registry fails
	reg := prometheus.NewRegistry()
	_, err = NewRunner(&Config{Logger: logger, Registry: reg})
	require.NoError(t, err)
	_, err = NewRunner(&Config{Logger: logger, Registry: reg})
	assert.Error(t, err)
}

func TestSlippageCurve(t *testing.T) {
	r, reg := newTestRunner(t, 4)

	// the sweep of the original study: 1 .. reserveA/2
	curve, err := r.SlippageCurve(context.Background(), CurveParams{
		Pool:      defaultPool,
		Direction: constantproduct.AtoB,
		Start:     1,
		Stop:      500,
		Step:      1,
	})
	require.NoError(t, err)
	require.Len(t, curve, 499)

	assert.InDelta(t, 0.1, curve[0].TradeSizePercent, 1e-12)
	assert.Equal(t, 1.0, curve[0].Result.AmountIn)
	assert.Equal(t, 499.0, curve[len(curve)-1].Result.AmountIn)
	assert.InDelta(t, 1.2841965602938599, curve[9].Result.SlippagePercent, 1e-9)

	for i := 1; i < len(curve); i++ {
		assert.Greater(t, curve[i].Result.AmountIn, curve[i-1].Result.AmountIn)
		assert.Greater(t, curve[i].Result.SlippagePercent, curve[i-1].Result.SlippagePercent, "slippage must grow with trade size at point %d", i)
		// every point is priced against the same starting reserves
		assert.Equal(t, 1000+curve[i].Result.AmountIn, curve[i].Result.NewReserveA)
	}

	assert.Equal(t, 499.0, testutil.ToFloat64(r.metrics.swapsTotal.WithLabelValues("AtoB", outcomeOK)))
	assert.Equal(t, 499.0, testutil.ToFloat64(r.metrics.curvePoints))
	assert.Equal(t, 1, testutil.CollectAndCount(r.metrics.slippage))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSlippageCurve_FractionalStep(t *testing.T) {
	r, _ := newTestRunner(t, 1)

	curve, err := r.SlippageCurve(context.Background(), CurveParams{
		Pool:      defaultPool,
		Direction: constantproduct.BtoA,
		Start:     0.1,
		Stop:      0.3,
		Step:      0.1,
	})
	require.NoError(t, err)
	require.Len(t, curve, 2)
	for _, pt := range curve {
		assert.Less(t, pt.Result.AmountIn, 0.3)
	}
}

func TestSlippageCurve_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		params      CurveParams
		expectedErr error
	}{
		{
			name:        "Zero step",
			params:      CurveParams{Pool: defaultPool, Direction: constantproduct.AtoB, Start: 1, Stop: 10},
			expectedErr: ErrInvalidCurve,
		},
		{
			name:        "Empty range",
			params:      CurveParams{Pool: defaultPool, Direction: constantproduct.AtoB, Start: 10, Stop: 10, Step: 1},
			expectedErr: ErrInvalidCurve,
		},
		{
			name:        "Too many points",
			params:      CurveParams{Pool: defaultPool, Direction: constantproduct.AtoB, Start: 1e-9, Stop: 1, Step: 1e-9},
			expectedErr: ErrInvalidCurve,
		},
		{
			name:        "Invalid pool",
			params:      CurveParams{Pool: constantproduct.PoolState{ReserveA: 0, ReserveB: 1}, Direction: constantproduct.AtoB, Start: 1, Stop: 2, Step: 1},
			expectedErr: constantproduct.ErrInvalidParameter,
		},
		{
			name:        "Invalid direction",
			params:      CurveParams{Pool: defaultPool, Start: 1, Stop: 2, Step: 1},
			expectedErr: constantproduct.ErrInvalidDirection,
		},
		{
			name:        "Sweep reaches the reserve",
			params:      CurveParams{Pool: defaultPool, Direction: constantproduct.AtoB, Start: 100, Stop: 1500, Step: 100},
			expectedErr: constantproduct.ErrInsufficientLiquidity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestRunner(t, 2)
			curve, err := r.SlippageCurve(context.Background(), tc.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Nil(t, curve)
		})
	}
}

func TestSlippageCurve_Cancelled(t *testing.T) {
	r, _ := newTestRunner(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.SlippageCurve(ctx, CurveParams{Pool: defaultPool, Direction: constantproduct.AtoB, Start: 1, Stop: 500, Step: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSamples(t *testing.T) {
	r, _ := newTestRunner(t, 1)

	samples, err := r.Samples(defaultPool, constantproduct.AtoB, []float64{0.01, 0.1, 0.4})
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.InDelta(t, 9.871580343970614, samples[0].Result.AmountOut, 1e-9)
	assert.InDelta(t, 90.66108938801491, samples[1].Result.AmountOut, 1e-9)
	assert.InDelta(t, 285.10151558478697, samples[2].Result.AmountOut, 1e-9)
	assert.Equal(t, 0.4, samples[2].Fraction)

	_, err = r.Samples(defaultPool, constantproduct.AtoB, []float64{0.5, 1})
	assert.ErrorIs(t, err, constantproduct.ErrInsufficientLiquidity)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.swapsTotal.WithLabelValues("AtoB", outcomeError)))
}

func TestSequence(t *testing.T) {
	r, _ := newTestRunner(t, 1)
	pool, err := constantproduct.NewFromState(defaultPool)
	require.NoError(t, err)

	report, err := r.Sequence(pool, []Trade{
		{AmountIn: 10, Direction: constantproduct.AtoB},
		{AmountIn: 10, Direction: constantproduct.AtoB},
		{AmountIn: 5, Direction: constantproduct.BtoA},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	// the caller's pool is untouched
	assert.Equal(t, defaultPool, pool.State())
	assert.Equal(t, defaultPool, report.Initial)
	assert.Equal(t, report.Results[2].NewReserveA, report.Final.ReserveA)
	assert.Equal(t, report.Results[2].NewReserveB, report.Final.ReserveB)
	assert.Less(t, report.Results[1].AmountOut, report.Results[0].AmountOut)
	assert.Greater(t, report.Diff.KGrowth, 0.0)

	_, err = r.Sequence(pool, []Trade{{AmountIn: 10, Direction: constantproduct.AtoB}, {AmountIn: -1, Direction: constantproduct.AtoB}})
	assert.ErrorIs(t, err, constantproduct.ErrInvalidAmount)
}

func TestRoundTrip(t *testing.T) {
	r, _ := newTestRunner(t, 1)

	report, err := r.RoundTrip(defaultPool, 10, constantproduct.AtoB)
	require.NoError(t, err)

	assert.Equal(t, constantproduct.AtoB, report.Out.Direction)
	assert.Equal(t, constantproduct.BtoA, report.Back.Direction)
	assert.Equal(t, report.Out.AmountOut, report.Back.AmountIn)
	assert.InDelta(t, 9.940679649621593, report.Back.AmountOut, 1e-9)
	assert.Greater(t, report.Loss, 0.0)
	assert.Greater(t, report.Diff.KGrowth, 0.0)

	zeroFee := constantproduct.PoolState{ReserveA: 1000, ReserveB: 1000}
	report, err = r.RoundTrip(zeroFee, 10, constantproduct.BtoA)
	require.NoError(t, err)
	assert.InDelta(t, 0, report.Loss, 1e-9)

	_, err = r.RoundTrip(defaultPool, 1000, constantproduct.AtoB)
	assert.ErrorIs(t, err, constantproduct.ErrInsufficientLiquidity)
}
