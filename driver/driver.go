// Copyright (c) 2023 BVK Chaitanya

package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/ctxutil"
	"github.com/bvk/volumebot/cycle"
	"github.com/bvk/volumebot/eligibility"
	"github.com/bvk/volumebot/gobs"
	"github.com/bvk/volumebot/idgen"
	"github.com/bvk/volumebot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/gagliardetto/solana-go"
	"github.com/visvasity/topic"
)

// StateKey holds the round counter and the summary of the last round.
const StateKey = "/volumebot/state"

type Network interface {
	Balance(ctx context.Context, pub solana.PublicKey) (uint64, error)
}

type Orchestrator interface {
	RunRound(ctx context.Context, round uint64, pairs []cycle.Pair) *cycle.Report
}

type Funder interface {
	Propagate(ctx context.Context, source, target *actor.Actor) (*actor.Actor, error)
}

// Round is the result of one round including the funding step that followed
// it.
type Round struct {
	*cycle.Report

	// Funded holds the public keys of actors funded after the round.
	Funded []string

	FundingErrors int
}

type Driver struct {
	opts Options

	db    kv.Database
	store *actor.Store
	keys  *actor.Keyring

	net    Network
	gate   *eligibility.Gate
	orch   Orchestrator
	funder Funder

	reports *topic.Topic[*Round]

	mu   sync.Mutex
	last *Round
}

// New creates a round driver. Funder can be nil when new actors are never
// generated.
func New(db kv.Database, store *actor.Store, keys *actor.Keyring, net Network, gate *eligibility.Gate, orch Orchestrator, funder Funder, opts *Options) (*Driver, error) {
	if opts == nil {
		opts = new(Options)
	}
	d := &Driver{
		opts:    *opts,
		db:      db,
		store:   store,
		keys:    keys,
		net:     net,
		gate:    gate,
		orch:    orch,
		funder:  funder,
		reports: topic.New[*Round](),
	}
	d.opts.setDefaults()
	if err := d.opts.Check(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reports returns the topic where every completed round is published.
func (d *Driver) Reports() *topic.Topic[*Round] {
	return d.reports
}

// LastRound returns the most recent round run by this driver or nil.
func (d *Driver) LastRound() *Round {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// State returns the persisted driver state.
func (d *Driver) State(ctx context.Context) (*gobs.DriverState, error) {
	state, err := kvutil.GetDB[gobs.DriverState](ctx, d.db, StateKey)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("could not load driver state: %w", err)
		}
		return &gobs.DriverState{NextRound: 1}, nil
	}
	return state, nil
}

// Run repeats rounds with the configured interval till the round budget is
// exhausted or the context is canceled. When generateNextActor is true, every
// actor funds a newly generated actor after the round.
func (d *Driver) Run(ctx context.Context, generateNextActor bool) error {
	if generateNextActor && d.funder == nil {
		return fmt.Errorf("funding needs a funder: %w", os.ErrInvalid)
	}

	state, err := d.State(ctx)
	if err != nil {
		return err
	}

	for n := uint64(0); d.opts.Rounds == 0 || n < d.opts.Rounds; n++ {
		if n > 0 {
			if err := ctxutil.Backoff(ctx, d.opts.RoundInterval); err != nil {
				return err
			}
		} else if err := context.Cause(ctx); err != nil {
			return err
		}

		round := state.NextRound + n
		fund := generateNextActor && round%d.opts.FundEvery == 0
		if _, err := d.RunRound(ctx, round, fund); err != nil {
			return err
		}
	}
	return nil
}

// RunRound loads the actors afresh, gates them on their current balance and
// runs one round. Funding follows when fund is true.
func (d *Driver) RunRound(ctx context.Context, round uint64, fund bool) (*Round, error) {
	actors, err := d.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load actors: %w", err)
	}
	d.keys.Reset(actors)

	pairs, ineligible := d.plan(ctx, round, actors)
	slog.InfoContext(ctx, "starting round", "round", round, "actors", len(actors), "eligible", len(pairs))

	// Shutdown requests are honored only between rounds, so that no actor is
	// left holding the asset.
	r := &Round{Report: d.orch.RunRound(context.WithoutCancel(ctx), round, pairs)}
	r.Ineligible = ineligible

	if fund && context.Cause(ctx) == nil {
		d.fund(ctx, r, actors)
	}
	slog.InfoContext(ctx, r.Summary(), "funded", len(r.Funded), "funding-errors", r.FundingErrors)

	state := &gobs.DriverState{NextRound: round + 1, LastRound: summarize(r)}
	if err := kvutil.SetDB(context.WithoutCancel(ctx), d.db, StateKey, state); err != nil {
		return nil, fmt.Errorf("could not save driver state: %w", err)
	}

	d.mu.Lock()
	d.last = r
	d.mu.Unlock()

	d.reports.Send(r)
	return r, nil
}

func (d *Driver) plan(ctx context.Context, round uint64, actors []*actor.Actor) ([]cycle.Pair, int) {
	ids := idgen.ForRound(d.opts.Asset.String(), round)

	var pairs []cycle.Pair
	ineligible := 0
	for _, a := range actors {
		balance, err := d.net.Balance(ctx, a.PublicKey())
		if err != nil {
			slog.WarnContext(ctx, "could not read actor balance (skipped)", "round", round, "actor", a, "err", err)
			ineligible++
			continue
		}
		size, err := d.gate.Check(balance)
		if err != nil {
			slog.InfoContext(ctx, "actor is not eligible (skipped)", "round", round, "actor", a, "balance", balance)
			ineligible++
			continue
		}
		buy := &action.Action{
			ID:     ids.NextID().String(),
			Round:  round,
			Actor:  a.PublicKey(),
			Asset:  d.opts.Asset,
			Amount: size,
			Kind:   action.Buy,
		}
		sell := &action.Action{
			ID:    ids.NextID().String(),
			Round: round,
			Actor: a.PublicKey(),
			Asset: d.opts.Asset,
			Kind:  action.Sell,
		}
		pairs = append(pairs, cycle.Pair{Buy: buy, Sell: sell})
	}
	return pairs, ineligible
}

func (d *Driver) fund(ctx context.Context, r *Round, actors []*actor.Actor) {
	for _, a := range actors {
		if context.Cause(ctx) != nil {
			return
		}
		target, err := d.funder.Propagate(ctx, a, nil)
		if err != nil {
			slog.ErrorContext(ctx, "could not fund next actor", "round", r.Round, "source", a, "err", err)
			r.FundingErrors++
			continue
		}
		if target != nil {
			slog.InfoContext(ctx, "funded next actor", "round", r.Round, "source", a, "target", target)
			r.Funded = append(r.Funded, target.PublicKey().String())
		}
	}
}

func summarize(r *Round) *gobs.RoundSummary {
	return &gobs.RoundSummary{
		Round:          r.Round,
		Policy:         r.Policy.String(),
		StartTime:      r.Start,
		EndTime:        r.End,
		Actors:         r.Actors,
		Ineligible:     r.Ineligible,
		BuysConfirmed:  r.Buys.Confirmed,
		BuysFailed:     r.Buys.Failed,
		SellsConfirmed: r.Sells.Confirmed,
		SellsFailed:    r.Sells.Failed,
		Skipped:        r.Buys.Skipped + r.Sells.Skipped,
		QueueLen:       r.QueueLen,
	}
}
