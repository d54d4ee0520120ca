// Copyright (c) 2023 BVK Chaitanya

package cycle

import (
	"fmt"
	"os"
	"strings"
)

// Policy selects the order in which buys and sells of a round are executed.
type Policy int

const (
	// Staggered executes actor i's buy, then the oldest pending sell, then
	// queues actor i's sell. Remaining sells are drained at round end. A
	// sell failing with ErrInsufficientBalance is dropped, not re-queued.
	Staggered Policy = iota

	// Lockstep executes every buy immediately followed by its own sell.
	Lockstep

	// SellThenBuy executes all sells first and then all buys.
	SellThenBuy
)

func (p Policy) String() string {
	switch p {
	case Staggered:
		return "staggered"
	case Lockstep:
		return "lockstep"
	case SellThenBuy:
		return "sell-then-buy"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "staggered", "pipeline":
		return Staggered, nil
	case "lockstep", "immediate":
		return Lockstep, nil
	case "sell-then-buy", "sellthenbuy":
		return SellThenBuy, nil
	}
	return 0, fmt.Errorf("unknown interleaving policy %q: %w", s, os.ErrInvalid)
}
