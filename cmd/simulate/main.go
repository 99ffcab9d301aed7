package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/constantproduct-go/chains/ethereum"
	"github.com/defistate/constantproduct-go/cmd/simulate/config"
	"github.com/defistate/constantproduct-go/protocols/constantproduct"
	"github.com/defistate/constantproduct-go/report"
	"github.com/defistate/constantproduct-go/simulation"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	level, _ := cfg.Level()

	// stdout carries the report, so logs go to stderr
	rootLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	close := func() {
		os.Exit(1)
	}

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, rootLogger, prometheus.DefaultRegisterer); err != nil {
		rootLogger.Error("Simulation failed", "error", err)
		stop()
		close()
	}
}

func run(ctx context.Context, cfg *config.SimulateConfig, out io.Writer, logger *slog.Logger, registry prometheus.Registerer) error {
	state, err := loadPool(ctx, cfg, logger.With("component", "ethereum"))
	if err != nil {
		return err
	}

	runner, err := simulation.NewRunner(&simulation.Config{
		Logger:   logger.With("component", "simulation"),
		Registry: registry,
		Workers:  cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	w, err := report.NewWriter(out, cfg.Output, cfg.Precision)
	if err != nil {
		return err
	}

	if err := w.Pool(state); err != nil {
		return err
	}

	samples, err := runner.Samples(state, cfg.Direction, cfg.Samples)
	if err != nil {
		return fmt.Errorf("samples: %w", err)
	}
	if err := section(w, "samples", func() error { return w.Samples(samples) }); err != nil {
		return err
	}

	reserveIn := state.ReserveA
	if cfg.Direction == constantproduct.BtoA {
		reserveIn = state.ReserveB
	}
	curve, err := runner.SlippageCurve(ctx, simulation.CurveParams{
		Pool:      state,
		Direction: cfg.Direction,
		Start:     cfg.Curve.Start,
		Stop:      cfg.CurveStop(reserveIn),
		Step:      cfg.Curve.Step,
	})
	if err != nil {
		return fmt.Errorf("slippage curve: %w", err)
	}
	if err := section(w, "slippage curve", func() error { return w.Curve(curve) }); err != nil {
		return err
	}

	if cfg.RoundTrip > 0 {
		rt, err := runner.RoundTrip(state, cfg.RoundTrip, cfg.Direction)
		if err != nil {
			return fmt.Errorf("round trip: %w", err)
		}
		if err := section(w, "round trip", func() error { return w.RoundTrip(rt) }); err != nil {
			return err
		}
	}

	if len(cfg.Trades) > 0 {
		pool, err := constantproduct.NewFromState(state)
		if err != nil {
			return err
		}
		seq, err := runner.Sequence(pool, cfg.Trades)
		if err != nil {
			return fmt.Errorf("sequence: %w", err)
		}
		if err := section(w, "sequence", func() error { return w.Sequence(seq) }); err != nil {
			return err
		}
	}
	return nil
}

// loadPool returns the static pool from cfg, or reads it from the configured
// Uniswap V2 pair.
func loadPool(ctx context.Context, cfg *config.SimulateConfig, logger *slog.Logger) (constantproduct.PoolState, error) {
	if !cfg.Ethereum.Enabled() {
		return cfg.PoolState(), nil
	}

	client, err := ethereum.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		return constantproduct.PoolState{}, fmt.Errorf("failed to dial %s: %w", cfg.Ethereum.RPCURL, err)
	}
	defer client.Close()

	var opts []ethereum.Option
	if cfg.Ethereum.Block > 0 {
		opts = append(opts, ethereum.WithBlockNumber(cfg.Ethereum.Block))
	}
	loader, err := ethereum.NewPairLoader(client, logger, opts...)
	if err != nil {
		return constantproduct.PoolState{}, err
	}
	pair, err := loader.Load(ctx, cfg.Ethereum.PairAddress())
	if err != nil {
		return constantproduct.PoolState{}, err
	}
	pool, err := pair.Pool(ethereum.TokenSpec{
		TokenA:    cfg.Ethereum.TokenAAddress(),
		DecimalsA: cfg.Ethereum.DecimalsA,
		DecimalsB: cfg.Ethereum.DecimalsB,
	}, cfg.PoolState().Fee)
	if err != nil {
		return constantproduct.PoolState{}, err
	}

	logger.Info("Loaded pool from chain", "pair", pair.Pair.Hex(), "block", pair.Block, "reserveA", pool.ReserveA(), "reserveB", pool.ReserveB())
	return pool.State(), nil
}

func section(w *report.Writer, title string, write func() error) error {
	if err := w.Title(title); err != nil {
		return err
	}
	return write()
}

func loadConfig() (*config.SimulateConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
