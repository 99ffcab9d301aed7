package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/defistate/constantproduct-go/chains"
	"github.com/defistate/constantproduct-go/protocols/constantproduct"
)

// Storage slots of a UniswapV2Pair:
//
//	slot 6: address token0
//	slot 7: address token1
//	slot 8: uint112 reserve0 | uint112 reserve1 | uint32 blockTimestampLast (low to high bits)
const (
	slotToken0   = 6
	slotToken1   = 7
	slotReserves = 8

	DefaultDialTimeout = 15 * time.Second
)

var (
	// ErrEmptyReserves is returned when a pair holds nothing on either side.
	ErrEmptyReserves = errors.New("pair has empty reserves")
	// ErrTokenNotInPair is returned when the requested token A is neither token0 nor token1.
	ErrTokenNotInPair = errors.New("token is not part of the pair")

	mask112 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 112), uint256.NewInt(1))
	ten     = big.NewInt(10)
)

// StorageReader is the subset of ethclient.Client the loader needs.
type StorageReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to an Ethereum JSON-RPC endpoint, bounded by DefaultDialTimeout.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()

	return ethclient.DialContext(ctx, url)
}

// PairState is the raw on-chain state of a Uniswap V2 pair at one block.
type PairState struct {
	Pair      common.Address
	Block     uint64
	Token0    common.Address
	Token1    common.Address
	Reserve0  *uint256.Int
	Reserve1  *uint256.Int
	Timestamp uint32
}

// PairLoader reads Uniswap V2 pair storage directly.
type PairLoader struct {
	reader StorageReader
	logger chains.Logger

	// block pins reads to one height; zero means the latest block.
	block uint64
}

// Option configures the PairLoader.
type Option interface {
	apply(*PairLoader)
}

type funcOption func(*PairLoader)

func (f funcOption) apply(l *PairLoader) {
	f(l)
}

// WithBlockNumber pins every Load to block n instead of the chain head.
func WithBlockNumber(n uint64) Option {
	return funcOption(func(l *PairLoader) {
		l.block = n
	})
}

// NewPairLoader returns a loader reading through reader.
func NewPairLoader(reader StorageReader, logger chains.Logger, opts ...Option) (*PairLoader, error) {
	if reader == nil {
		return nil, errors.New("pair loader: reader cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("pair loader: logger cannot be nil")
	}
	l := &PairLoader{reader: reader, logger: logger}
	for _, opt := range opts {
		opt.apply(l)
	}
	return l, nil
}

// Load reads tokens and reserves of pair at the configured block, or at the
// chain head when none was set.
func (l *PairLoader) Load(ctx context.Context, pair common.Address) (*PairState, error) {
	bn := l.block
	if bn == 0 {
		head, err := l.reader.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("block number: %w", err)
		}
		bn = head
	}
	block := new(big.Int).SetUint64(bn)

	b0, err := l.readSlot(ctx, pair, block, slotToken0)
	if err != nil {
		return nil, err
	}
	b1, err := l.readSlot(ctx, pair, block, slotToken1)
	if err != nil {
		return nil, err
	}
	br, err := l.readSlot(ctx, pair, block, slotReserves)
	if err != nil {
		return nil, err
	}

	state := &PairState{
		Pair:   pair,
		Block:  bn,
		Token0: common.BytesToAddress(b0),
		Token1: common.BytesToAddress(b1),
	}
	state.Reserve0, state.Reserve1, state.Timestamp = unpackReserves(br)
	if state.Reserve0.IsZero() || state.Reserve1.IsZero() {
		return nil, fmt.Errorf("%w: pair %s at block %d", ErrEmptyReserves, pair.Hex(), bn)
	}

	l.logger.Debug("loaded pair state", "pair", pair.Hex(), "block", bn, "reserve0", state.Reserve0.ToBig().String(), "reserve1", state.Reserve1.ToBig().String())
	return state, nil
}

func (l *PairLoader) readSlot(ctx context.Context, pair common.Address, block *big.Int, slot uint64) ([]byte, error) {
	key := common.BigToHash(new(big.Int).SetUint64(slot))
	b, err := l.reader.StorageAt(ctx, pair, key, block)
	if err != nil {
		return nil, fmt.Errorf("storageAt slot %d (pair %s, block %s): %w", slot, pair.Hex(), block.String(), err)
	}
	return b, nil
}

// unpackReserves splits the packed reserves word into its three fields.
func unpackReserves(b []byte) (reserve0, reserve1 *uint256.Int, timestamp uint32) {
	v := new(uint256.Int).SetBytes(b)

	reserve0 = new(uint256.Int).And(v, mask112)
	reserve1 = new(uint256.Int).Rsh(v, 112)
	reserve1.And(reserve1, mask112)
	timestamp = uint32(new(uint256.Int).Rsh(v, 224).Uint64())
	return reserve0, reserve1, timestamp
}

// TokenSpec identifies the pool's token A and the decimals of both sides.
type TokenSpec struct {
	TokenA    common.Address
	DecimalsA uint8
	DecimalsB uint8
}

// Pool converts the pair into a constant-product pool in whole-token units.
// Token A is spec.TokenA, which must be token0 or token1 of the pair.
func (s *PairState) Pool(spec TokenSpec, fee float64) (*constantproduct.Pool, error) {
	var rawA, rawB *uint256.Int
	switch spec.TokenA {
	case s.Token0:
		rawA, rawB = s.Reserve0, s.Reserve1
	case s.Token1:
		rawA, rawB = s.Reserve1, s.Reserve0
	default:
		return nil, fmt.Errorf("%w: %s not in pair %s (%s, %s)", ErrTokenNotInPair, spec.TokenA.Hex(), s.Pair.Hex(), s.Token0.Hex(), s.Token1.Hex())
	}
	return constantproduct.New(ToFloat(rawA, spec.DecimalsA), ToFloat(rawB, spec.DecimalsB), fee)
}

// ToFloat scales a raw token amount down by 10^decimals.
func ToFloat(amount *uint256.Int, decimals uint8) float64 {
	scale := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
	f := new(big.Float).SetInt(amount.ToBig())
	f.Quo(f, new(big.Float).SetInt(scale))
	v, _ := f.Float64()
	return v
}
