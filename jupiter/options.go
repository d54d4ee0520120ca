// Copyright (c) 2023 BVK Chaitanya

package jupiter

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// BaseURL of the swap api.
	BaseURL string

	SlippageBps int

	// Priority fees in lamports attached to buy and sell swaps.
	BuyPriorityFee  uint64
	SellPriorityFee uint64

	HTTPTimeout time.Duration

	RequestsPerSecond float64

	// Attempts is the number of times a quote and swap build is tried before
	// reporting no route.
	Attempts int

	RetryInterval time.Duration
}

func (v *Options) setDefaults() {
	if len(v.BaseURL) == 0 {
		v.BaseURL = "https://quote-api.jup.ag"
	}
	if v.SlippageBps == 0 {
		v.SlippageBps = 100
	}
	if v.BuyPriorityFee == 0 {
		v.BuyPriorityFee = 100_000
	}
	if v.SellPriorityFee == 0 {
		v.SellPriorityFee = 52_000
	}
	if v.HTTPTimeout == 0 {
		v.HTTPTimeout = 10 * time.Second
	}
	if v.RequestsPerSecond == 0 {
		v.RequestsPerSecond = 1
	}
	if v.Attempts == 0 {
		v.Attempts = 3
	}
	if v.RetryInterval == 0 {
		v.RetryInterval = time.Second
	}
}

func (v *Options) Check() error {
	if v.SlippageBps < 0 || v.SlippageBps > 10_000 {
		return fmt.Errorf("slippage %d bps is out of range: %w", v.SlippageBps, os.ErrInvalid)
	}
	if v.Attempts < 0 {
		return fmt.Errorf("attempts cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
