// Copyright (c) 2023 BVK Chaitanya

package driver

import (
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
)

type Options struct {
	// Asset is the mint of the traded token.
	Asset solana.PublicKey

	// RoundInterval is the sleep between two rounds.
	RoundInterval time.Duration

	// Rounds is the number of rounds to run. Zero runs forever.
	Rounds uint64

	// FundEvery runs the funding step after every FundEvery rounds when
	// enabled.
	FundEvery uint64
}

func (v *Options) setDefaults() {
	if v.RoundInterval == 0 {
		v.RoundInterval = 10 * time.Second
	}
	if v.FundEvery == 0 {
		v.FundEvery = 1
	}
}

func (v *Options) Check() error {
	if v.Asset.IsZero() {
		return fmt.Errorf("asset mint cannot be empty: %w", os.ErrInvalid)
	}
	if v.RoundInterval < 0 {
		return fmt.Errorf("round interval cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
