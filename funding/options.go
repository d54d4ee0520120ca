// Copyright (c) 2023 BVK Chaitanya

package funding

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// MinFunding is the balance in lamports a source must exceed to fund a new
	// actor.
	MinFunding uint64

	// FeeReserve is left behind in the source for the transaction fee.
	FeeReserve uint64

	// Backoff is the wait between two attempts of the same split.
	Backoff time.Duration

	// MaxAttempts bounds the number of attempts of a split. Zero means retry
	// until the split succeeds or the source runs dry.
	MaxAttempts int
}

func (v *Options) setDefaults() {
	if v.MinFunding == 0 {
		v.MinFunding = 5_000_000
	}
	if v.FeeReserve == 0 {
		v.FeeReserve = 1_000_000
	}
	if v.Backoff == 0 {
		v.Backoff = 5 * time.Second
	}
}

func (v *Options) Check() error {
	if v.FeeReserve >= v.MinFunding {
		return fmt.Errorf("fee reserve %d must be below the funding threshold %d: %w", v.FeeReserve, v.MinFunding, os.ErrInvalid)
	}
	if v.MaxAttempts < 0 {
		return fmt.Errorf("max attempts cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
