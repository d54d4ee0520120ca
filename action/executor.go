// Copyright (c) 2023 BVK Chaitanya

package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/volumebot/ctxutil"
	"github.com/gagliardetto/solana-go"
)

// Factory builds signed payloads for swaps between the native currency and an
// asset.
type Factory interface {
	BuildBuy(ctx context.Context, owner solana.PrivateKey, asset solana.PublicKey, lamports uint64) (*Payload, error)
	BuildSell(ctx context.Context, owner solana.PrivateKey, asset solana.PublicKey, amount uint64) (*Payload, error)
}

// Submitter sends a payload once and waits for its outcome.
type Submitter interface {
	Submit(ctx context.Context, p *Payload) *Outcome
}

// Keyring resolves an actor identity to its signing key.
type Keyring interface {
	PrivateKey(pub solana.PublicKey) (solana.PrivateKey, bool)
}

// Balances reads asset balances from the network.
type Balances interface {
	AssetBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
}

// NoRoutePolicy decides what happens when the factory has no route for a
// swap. Zero value abandons the action.
type NoRoutePolicy struct {
	Retry bool

	// Delay between build attempts.
	Delay time.Duration

	// Limit on the number of build attempts. Zero means unbounded.
	Limit int
}

var Abandon = NoRoutePolicy{}

func RetryNoRoute(delay time.Duration, limit int) NoRoutePolicy {
	return NoRoutePolicy{Retry: true, Delay: delay, Limit: limit}
}

type Executor struct {
	keys      Keyring
	factory   Factory
	submitter Submitter
	balances  Balances

	noRoute NoRoutePolicy
}

func NewExecutor(keys Keyring, factory Factory, submitter Submitter, balances Balances, noRoute NoRoutePolicy) *Executor {
	return &Executor{
		keys:      keys,
		factory:   factory,
		submitter: submitter,
		balances:  balances,
		noRoute:   noRoute,
	}
}

// Execute builds, signs and submits the action. It never panics and always
// returns a non-nil outcome.
func (e *Executor) Execute(ctx context.Context, a *Action) *Outcome {
	key, ok := e.keys.PrivateKey(a.Actor)
	if !ok {
		return &Outcome{Status: Skipped, Err: fmt.Errorf("signing key for actor %s: %w", a.Actor, os.ErrNotExist)}
	}

	amount := a.Amount
	if a.Kind == Sell && amount == 0 {
		balance, err := e.balances.AssetBalance(ctx, a.Actor, a.Asset)
		if err != nil {
			return &Outcome{Status: Skipped, Err: fmt.Errorf("could not read asset balance: %w: %w", ErrUnreachable, err)}
		}
		if balance == 0 {
			return &Outcome{Status: Skipped, Err: fmt.Errorf("actor %s holds no asset: %w", a.Actor, ErrInsufficientBalance)}
		}
		amount = balance
	}

	payload, err := e.build(ctx, key, a, amount)
	if err != nil {
		return &Outcome{Status: Skipped, Err: err}
	}

	outcome := e.submitter.Submit(ctx, payload)
	if outcome.OK() {
		slog.InfoContext(ctx, "action confirmed", "action", a, "url", ExplorerURL(outcome.Signature))
	}
	return outcome
}

func (e *Executor) build(ctx context.Context, key solana.PrivateKey, a *Action, amount uint64) (*Payload, error) {
	for attempt := 1; ; attempt++ {
		var payload *Payload
		var err error
		switch a.Kind {
		case Buy:
			payload, err = e.factory.BuildBuy(ctx, key, a.Asset, amount)
		case Sell:
			payload, err = e.factory.BuildSell(ctx, key, a.Asset, amount)
		default:
			return nil, fmt.Errorf("action kind %d: %w", a.Kind, os.ErrInvalid)
		}
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, ErrNoRoute) || !e.noRoute.Retry {
			return nil, err
		}
		if e.noRoute.Limit > 0 && attempt >= e.noRoute.Limit {
			return nil, fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		slog.WarnContext(ctx, "no route for action (retrying)", "action", a, "attempt", attempt)
		if err := ctxutil.Backoff(ctx, e.noRoute.Delay); err != nil {
			return nil, err
		}
	}
}
