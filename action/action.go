// Copyright (c) 2023 BVK Chaitanya

package action

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type Kind int

const (
	Buy Kind = iota + 1
	Sell
)

func (k Kind) String() string {
	switch k {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Action is a single buy or sell to be executed on behalf of an actor. All
// parameters are captured when the action is constructed.
//
// For buys, Amount is in native lamports. For sells, Amount is in the asset's
// base units and zero means the actor's entire asset balance at execution
// time.
type Action struct {
	ID    string
	Round uint64

	Actor solana.PublicKey
	Asset solana.PublicKey

	Amount uint64
	Kind   Kind
}

func (a *Action) String() string {
	return fmt.Sprintf("%s:%s:%d", a.Kind, a.Actor.Short(4), a.Amount)
}

// Payload is an opaque signed transaction with its validity checkpoint.
type Payload struct {
	Raw []byte

	Blockhash solana.Hash

	LastValidBlockHeight uint64
}

type Status int

const (
	// Confirmed means the network accepted and confirmed the payload.
	Confirmed Status = iota + 1

	// Failed means the network definitively reported an execution error.
	Failed

	// Indeterminate means the outcome could not be observed (transport failure
	// or expired checkpoint).
	Indeterminate

	// Skipped means no payload was submitted.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	case Indeterminate:
		return "indeterminate"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Outcome struct {
	Status Status

	Signature solana.Signature

	Err error
}

// OK returns true only for confirmed outcomes.
func (o *Outcome) OK() bool {
	return o != nil && o.Status == Confirmed
}

// ExplorerURL returns a link to the transaction on a public explorer.
func ExplorerURL(sig solana.Signature) string {
	return "https://solscan.io/tx/" + sig.String()
}
