package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/defistate/constantproduct-go/chains"
	"github.com/defistate/constantproduct-go/protocols/constantproduct"
)

// MaxCurvePoints bounds a single sweep.
const MaxCurvePoints = 1_000_000

var (
	// ErrInvalidCurve is returned for a sweep with a bad range or step.
	ErrInvalidCurve = errors.New("invalid curve parameters")
)

// Config holds the Runner's dependencies.
type Config struct {
	Logger   chains.Logger
	Registry prometheus.Registerer
	// Workers bounds the number of sweep points priced concurrently.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: Workers cannot be negative, got %d", c.Workers)
	}
	return nil
}

// Runner drives pools through the scenarios used to study slippage: sweeps
// over trade size, one-off samples, sequential runs and round trips.
type Runner struct {
	logger  chains.Logger
	metrics *Metrics
	workers int
}

// NewRunner constructs a Runner from cfg, returning an error if the config is invalid.
func NewRunner(cfg *Config) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{
		logger:  cfg.Logger,
		metrics: metrics,
		workers: workers,
	}, nil
}

// swap applies one trade to p and records it.
func (r *Runner) swap(p *constantproduct.Pool, amountIn float64, dir constantproduct.Direction) (constantproduct.SwapResult, error) {
	res, err := p.Swap(amountIn, dir)
	r.metrics.observeSwap(dir.String(), res.SlippagePercent, err)
	return res, err
}

func (p CurveParams) points() (int, error) {
	if !(p.Step > 0) || math.IsInf(p.Step, 1) {
		return 0, fmt.Errorf("%w: step must be positive, got %g", ErrInvalidCurve, p.Step)
	}
	if !(p.Start > 0) || !(p.Stop > p.Start) {
		return 0, fmt.Errorf("%w: need 0 < start < stop, got [%g, %g)", ErrInvalidCurve, p.Start, p.Stop)
	}
	n := math.Ceil((p.Stop - p.Start) / p.Step)
	if n > MaxCurvePoints {
		return 0, fmt.Errorf("%w: %g points exceeds the limit of %d", ErrInvalidCurve, n, MaxCurvePoints)
	}
	// Ceil can overshoot by one when the division rounds up.
	for n > 1 && p.Start+(n-1)*p.Step >= p.Stop {
		n--
	}
	return int(n), nil
}

// SlippageCurve prices every amountIn in [Start, Stop) against a fresh pool.
// Points are computed concurrently and returned in increasing amountIn order.
func (r *Runner) SlippageCurve(ctx context.Context, params CurveParams) ([]CurvePoint, error) {
	timer := prometheus.NewTimer(r.metrics.runDuration.WithLabelValues("curve"))
	defer timer.ObserveDuration()

	n, err := params.points()
	if err != nil {
		return nil, err
	}
	// validate the pool once up front so a bad state fails fast
	if _, err := constantproduct.NewFromState(params.Pool); err != nil {
		return nil, err
	}
	if !params.Direction.Valid() {
		return nil, fmt.Errorf("%w: %s", constantproduct.ErrInvalidDirection, params.Direction)
	}
	reserveIn := params.Pool.ReserveA
	if params.Direction == constantproduct.BtoA {
		reserveIn = params.Pool.ReserveB
	}

	r.logger.Debug("starting slippage sweep", "points", n, "start", params.Start, "stop", params.Stop, "step", params.Step, "direction", params.Direction.String())

	curve := make([]CurvePoint, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i // per-iteration copy; go.mod targets go1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			amountIn := params.Start + float64(i)*params.Step
			pool, err := constantproduct.NewFromState(params.Pool)
			if err != nil {
				return err
			}
			res, err := r.swap(pool, amountIn, params.Direction)
			if err != nil {
				return fmt.Errorf("curve point %d (amountIn=%g): %w", i, amountIn, err)
			}
			curve[i] = CurvePoint{
				TradeSizePercent: amountIn / reserveIn * 100,
				Result:           res,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Warn("slippage sweep failed", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.metrics.curvePoints.Add(float64(n))
	r.logger.Info("slippage sweep complete", "points", n)
	return curve, nil
}

// Samples prices one swap per fraction of the input reserve, each against a
// fresh pool.
func (r *Runner) Samples(state constantproduct.PoolState, dir constantproduct.Direction, fractions []float64) ([]Sample, error) {
	timer := prometheus.NewTimer(r.metrics.runDuration.WithLabelValues("samples"))
	defer timer.ObserveDuration()

	samples := make([]Sample, 0, len(fractions))
	for _, fraction := range fractions {
		pool, err := constantproduct.NewFromState(state)
		if err != nil {
			return nil, err
		}
		reserveIn := pool.ReserveA()
		if dir == constantproduct.BtoA {
			reserveIn = pool.ReserveB()
		}

		res, err := r.swap(pool, reserveIn*fraction, dir)
		if err != nil {
			return nil, fmt.Errorf("sample %g of reserve: %w", fraction, err)
		}
		samples = append(samples, Sample{Fraction: fraction, Result: res})
	}
	return samples, nil
}

// Sequence applies trades in order to a copy of pool. The caller's pool is
// not modified. The first failing trade aborts the run.
func (r *Runner) Sequence(pool *constantproduct.Pool, trades []Trade) (SequenceReport, error) {
	timer := prometheus.NewTimer(r.metrics.runDuration.WithLabelValues("sequence"))
	defer timer.ObserveDuration()

	p := pool.Clone()
	report := SequenceReport{
		Initial: p.State(),
		Results: make([]constantproduct.SwapResult, 0, len(trades)),
	}
	for i, trade := range trades {
		res, err := r.swap(p, trade.AmountIn, trade.Direction)
		if err != nil {
			return SequenceReport{}, fmt.Errorf("trade %d: %w", i, err)
		}
		report.Results = append(report.Results, res)
	}

	report.Final = p.State()
	report.Diff = constantproduct.Differ(report.Initial, report.Final)
	r.metrics.kGrowthRatio.Observe(report.Diff.KGrowth)
	r.logger.Debug("sequence complete", "trades", len(trades), "kGrowth", report.Diff.KGrowth)
	return report, nil
}

// RoundTrip swaps amountIn in direction dir on a fresh pool and immediately
// swaps the received amount back.
func (r *Runner) RoundTrip(state constantproduct.PoolState, amountIn float64, dir constantproduct.Direction) (RoundTripReport, error) {
	pool, err := constantproduct.NewFromState(state)
	if err != nil {
		return RoundTripReport{}, err
	}
	report, err := r.Sequence(pool, []Trade{{AmountIn: amountIn, Direction: dir}})
	if err != nil {
		return RoundTripReport{}, err
	}
	out := report.Results[0]

	after, err := constantproduct.NewFromState(report.Final)
	if err != nil {
		return RoundTripReport{}, err
	}
	back, err := r.swap(after, out.AmountOut, dir.Reverse())
	if err != nil {
		return RoundTripReport{}, fmt.Errorf("return leg: %w", err)
	}

	return RoundTripReport{
		Out:  out,
		Back: back,
		Loss: amountIn - back.AmountOut,
		Diff: constantproduct.Differ(state, after.State()),
	}, nil
}
