// Package config loads the simulate command's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/defistate/constantproduct-go/protocols/constantproduct"
	"github.com/defistate/constantproduct-go/report"
	"github.com/defistate/constantproduct-go/simulation"
)

// Defaults reproduce the reference study: a 1000/1000 pool with a 0.3% fee,
// swept from 1 up to half of reserve A.
const (
	DefaultReserveA = 1000
	DefaultReserveB = 1000
	DefaultFee      = 0.003
)

var DefaultSampleFractions = []float64{0.01, 0.1, 0.4}

// PoolConfig is the static pool used when no chain source is configured.
type PoolConfig struct {
	ReserveA float64  `yaml:"reserveA"`
	ReserveB float64  `yaml:"reserveB"`
	Fee      *float64 `yaml:"fee"`
}

// CurveConfig is the slippage sweep range. Zero Stop means reserveIn/2.
type CurveConfig struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// EthereumConfig reads the pool from a Uniswap V2 pair instead.
type EthereumConfig struct {
	RPCURL    string `yaml:"rpcURL"`
	Pair      string `yaml:"pair"`
	TokenA    string `yaml:"tokenA"`
	DecimalsA uint8  `yaml:"decimalsA"`
	DecimalsB uint8  `yaml:"decimalsB"`
	// Block pins the read; zero means latest.
	Block uint64 `yaml:"block"`
}

// Enabled reports whether a chain source is configured.
func (e *EthereumConfig) Enabled() bool {
	return e.RPCURL != ""
}

// PairAddress returns the pair contract address.
func (e *EthereumConfig) PairAddress() common.Address {
	return common.HexToAddress(e.Pair)
}

// TokenAAddress returns the address of the token treated as A.
func (e *EthereumConfig) TokenAAddress() common.Address {
	return common.HexToAddress(e.TokenA)
}

// SimulateConfig is the root of the configuration file.
type SimulateConfig struct {
	Pool      PoolConfig                `yaml:"pool"`
	Direction constantproduct.Direction `yaml:"direction"`
	Curve     CurveConfig               `yaml:"curve"`
	Samples   []float64                 `yaml:"samples"`
	// RoundTrip is the amount swapped out and back; zero disables it.
	RoundTrip float64            `yaml:"roundTrip"`
	Trades    []simulation.Trade `yaml:"trades"`

	Output    report.Format `yaml:"output"`
	Precision int32         `yaml:"precision"`
	LogLevel  string        `yaml:"logLevel"`
	Workers   int           `yaml:"workers"`

	Ethereum EthereumConfig `yaml:"ethereum"`
}

// PoolState returns the static pool snapshot.
func (c *SimulateConfig) PoolState() constantproduct.PoolState {
	s := constantproduct.PoolState{ReserveA: c.Pool.ReserveA, ReserveB: c.Pool.ReserveB}
	if c.Pool.Fee != nil {
		s.Fee = *c.Pool.Fee
	}
	return s
}

// Level parses LogLevel into a slog level.
func (c *SimulateConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid logLevel %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *SimulateConfig) applyDefaults() {
	if c.Pool.ReserveA == 0 && c.Pool.ReserveB == 0 {
		c.Pool.ReserveA, c.Pool.ReserveB = DefaultReserveA, DefaultReserveB
	}
	if c.Pool.Fee == nil {
		fee := DefaultFee
		c.Pool.Fee = &fee
	}
	if c.Direction == 0 {
		c.Direction = constantproduct.AtoB
	}
	if c.Curve.Start == 0 {
		c.Curve.Start = 1
	}
	if c.Curve.Step == 0 {
		c.Curve.Step = 1
	}
	if c.Samples == nil {
		c.Samples = append([]float64(nil), DefaultSampleFractions...)
	}
	if c.Output == "" {
		c.Output = report.FormatTable
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *SimulateConfig) validate() error {
	var errs []error

	if !c.Ethereum.Enabled() {
		if _, err := constantproduct.NewFromState(c.PoolState()); err != nil {
			errs = append(errs, fmt.Errorf("pool: %w", err))
		}
	} else {
		if !common.IsHexAddress(c.Ethereum.Pair) {
			errs = append(errs, fmt.Errorf("ethereum.pair: %q is not an address", c.Ethereum.Pair))
		}
		if !common.IsHexAddress(c.Ethereum.TokenA) {
			errs = append(errs, fmt.Errorf("ethereum.tokenA: %q is not an address", c.Ethereum.TokenA))
		}
		if fee := *c.Pool.Fee; !(fee >= 0 && fee < 1) {
			errs = append(errs, fmt.Errorf("pool.fee: must be in [0, 1), got %g", fee))
		}
	}
	if !(c.Curve.Start > 0) || !(c.Curve.Step > 0) {
		errs = append(errs, fmt.Errorf("curve: start and step must be positive, got start=%g step=%g", c.Curve.Start, c.Curve.Step))
	}
	if c.Curve.Stop != 0 && !(c.Curve.Stop > c.Curve.Start) {
		errs = append(errs, fmt.Errorf("curve: stop %g must exceed start %g", c.Curve.Stop, c.Curve.Start))
	}
	for _, f := range c.Samples {
		if !(f > 0 && f < 1) {
			errs = append(errs, fmt.Errorf("samples: fraction %g outside (0, 1)", f))
		}
	}
	if c.RoundTrip < 0 {
		errs = append(errs, fmt.Errorf("roundTrip: cannot be negative, got %g", c.RoundTrip))
	}
	for i, t := range c.Trades {
		if !t.Direction.Valid() {
			errs = append(errs, fmt.Errorf("trades[%d]: direction is required", i))
		}
	}
	if _, err := report.ParseFormat(string(c.Output)); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if c.Precision < 0 {
		errs = append(errs, fmt.Errorf("precision: cannot be negative, got %d", c.Precision))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers: cannot be negative, got %d", c.Workers))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CurveStop resolves the sweep end for a pool whose input reserve is reserveIn.
func (c *SimulateConfig) CurveStop(reserveIn float64) float64 {
	if c.Curve.Stop != 0 {
		return c.Curve.Stop
	}
	return reserveIn / 2
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte) (*SimulateConfig, error) {
	var cfg SimulateConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.Output = report.Format(strings.ToLower(strings.TrimSpace(string(cfg.Output))))
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads the file at path and parses it.
func LoadConfig(path string) (*SimulateConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}
