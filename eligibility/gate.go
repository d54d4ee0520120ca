// Copyright (c) 2023 BVK Chaitanya

package eligibility

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/bvk/volumebot/action"
)

type Options struct {
	// MinTrade and MaxTrade bound the randomized trade size in lamports.
	MinTrade uint64
	MaxTrade uint64

	// Baseline is the reference trade size. Defaults to MaxTrade.
	Baseline uint64

	// Headroom is the multiple of Baseline an actor must hold to trade.
	Headroom uint64

	// Reserve is kept aside for transaction fees and rent.
	Reserve uint64
}

func (v *Options) setDefaults() {
	if v.Baseline == 0 {
		v.Baseline = v.MaxTrade
	}
	if v.Headroom == 0 {
		v.Headroom = 2
	}
}

func (v *Options) Check() error {
	if v.MinTrade == 0 {
		return fmt.Errorf("minimum trade size cannot be zero: %w", os.ErrInvalid)
	}
	if v.MaxTrade < v.MinTrade {
		return fmt.Errorf("maximum trade size %d is below minimum %d: %w", v.MaxTrade, v.MinTrade, os.ErrInvalid)
	}
	return nil
}

// Gate decides whether an actor may take part in a round and how much it
// trades.
type Gate struct {
	opts Options

	rand *rand.Rand
}

func New(opts *Options, rnd *rand.Rand) (*Gate, error) {
	g := &Gate{opts: *opts, rand: rnd}
	g.opts.setDefaults()
	if err := g.opts.Check(); err != nil {
		return nil, err
	}
	if g.rand == nil {
		g.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return g, nil
}

func (g *Gate) Options() Options {
	return g.opts
}

// IsEligible returns true if the native balance covers the headroom multiple
// of the baseline and the reserve plus the smallest trade.
func (g *Gate) IsEligible(balance uint64) bool {
	if balance < g.opts.Headroom*g.opts.Baseline {
		return false
	}
	return balance >= g.opts.Reserve+g.opts.MinTrade
}

// TradeSize returns a fresh uniformly random size in [MinTrade, MaxTrade].
func (g *Gate) TradeSize() uint64 {
	span := g.opts.MaxTrade - g.opts.MinTrade
	if span == 0 {
		return g.opts.MinTrade
	}
	return g.opts.MinTrade + g.rand.Uint64N(span+1)
}

// Check returns the trade size for an actor with the given balance or
// ErrInsufficientBalance. The size never eats into the reserve.
func (g *Gate) Check(balance uint64) (uint64, error) {
	if !g.IsEligible(balance) {
		return 0, fmt.Errorf("balance %d is below the trading threshold: %w", balance, action.ErrInsufficientBalance)
	}
	size := g.TradeSize()
	if limit := balance - g.opts.Reserve; size > limit {
		size = limit
	}
	return size, nil
}
