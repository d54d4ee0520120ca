// Copyright (c) 2023 BVK Chaitanya

package action

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrUnreachable is returned when the network or the exchange service could
	// not be reached. Outcome of any submitted payload is unknown.
	ErrUnreachable = errors.New("network unreachable")

	// ErrRejected is returned when the network reports an execution error for a
	// submitted payload.
	ErrRejected = errors.New("payload rejected")

	// ErrNoRoute is returned when the exchange service has no payload for the
	// requested swap.
	ErrNoRoute = errors.New("no route")

	// ErrInsufficientBalance is returned when an actor does not have enough
	// balance to act.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// TxError carries the execution error reported by the network for a
// transaction.
type TxError struct {
	Signature solana.Signature

	Payload any
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Payload)
}

func (e *TxError) Unwrap() error {
	return ErrRejected
}
