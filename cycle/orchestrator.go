// Copyright (c) 2023 BVK Chaitanya

package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/ctxutil"
)

// Executor runs a single action to completion.
type Executor interface {
	Execute(ctx context.Context, a *action.Action) *action.Outcome
}

// Pair holds the buy and the paired sell of one actor in a round.
type Pair struct {
	Buy  *action.Action
	Sell *action.Action
}

type Options struct {
	Policy Policy

	// Shuffle randomizes the actor order of every round.
	Shuffle bool

	// Rand is used for shuffling. A time seeded source is used when nil.
	Rand *rand.Rand

	// Pause is the delay between two consecutive actions.
	Pause time.Duration
}

func (v *Options) setDefaults() {
	if v.Shuffle && v.Rand == nil {
		v.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
}

func (v *Options) Check() error {
	switch v.Policy {
	case Staggered, Lockstep, SellThenBuy:
	default:
		return fmt.Errorf("invalid policy %d: %w", v.Policy, os.ErrInvalid)
	}
	if v.Pause < 0 {
		return fmt.Errorf("pause cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}

// Orchestrator executes the actions of a round one at a time in the order
// selected by the policy. Failure of an action never stops the round.
type Orchestrator struct {
	opts Options

	exec Executor
}

func New(exec Executor, opts *Options) (*Orchestrator, error) {
	if opts == nil {
		opts = new(Options)
	}
	o := &Orchestrator{
		opts: *opts,
		exec: exec,
	}
	o.opts.setDefaults()
	if err := o.opts.Check(); err != nil {
		return nil, err
	}
	return o, nil
}

// RunRound executes all pairs and returns the round report. A round always
// runs to completion, so every bought actor gets its sell attempted before
// RunRound returns. Context cancellation must be checked by the caller
// between rounds.
func (o *Orchestrator) RunRound(ctx context.Context, round uint64, pairs []Pair) *Report {
	ctx = context.WithoutCancel(ctx)

	r := &Report{
		Round:  round,
		Policy: o.opts.Policy,
		Start:  time.Now(),
		Actors: len(pairs),
	}
	defer func() {
		r.End = time.Now()
	}()

	if o.opts.Shuffle {
		pairs = slices.Clone(pairs)
		o.opts.Rand.Shuffle(len(pairs), func(i, j int) {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		})
	}

	switch o.opts.Policy {
	case Lockstep:
		o.lockstep(ctx, r, pairs)
	case SellThenBuy:
		o.sellThenBuy(ctx, r, pairs)
	default:
		o.staggered(ctx, r, pairs)
	}
	return r
}

func (o *Orchestrator) staggered(ctx context.Context, r *Report, pairs []Pair) {
	var q Queue
	defer func() {
		r.QueueLen = q.Len()
	}()

	for _, p := range pairs {
		o.pause(ctx)
		o.execute(ctx, r, PhaseBuy, p.Buy)

		if sell, ok := q.PopFront(); ok {
			o.pause(ctx)
			if out := o.execute(ctx, r, PhasePipeline, sell); retryable(out) {
				q.PushFront(sell)
			}
		}
		q.PushBack(p.Sell)
	}

	for q.Len() > 0 {
		o.pause(ctx)
		sell, _ := q.PopFront()
		o.execute(ctx, r, PhaseDrain, sell)
	}
}

func (o *Orchestrator) lockstep(ctx context.Context, r *Report, pairs []Pair) {
	for _, p := range pairs {
		o.pause(ctx)
		o.execute(ctx, r, PhaseBuy, p.Buy)
		o.pause(ctx)
		o.execute(ctx, r, PhaseSell, p.Sell)
	}
}

func (o *Orchestrator) sellThenBuy(ctx context.Context, r *Report, pairs []Pair) {
	for _, p := range pairs {
		o.pause(ctx)
		o.execute(ctx, r, PhaseSell, p.Sell)
	}
	for _, p := range pairs {
		o.pause(ctx)
		o.execute(ctx, r, PhaseBuy, p.Buy)
	}
}

// pause waits for the configured delay between actions.
func (o *Orchestrator) pause(ctx context.Context) {
	if o.opts.Pause > 0 {
		ctxutil.Sleep(ctx, o.opts.Pause)
	}
}

func (o *Orchestrator) execute(ctx context.Context, r *Report, phase Phase, a *action.Action) *action.Outcome {
	out := o.exec.Execute(ctx, a)
	if out == nil {
		out = &action.Outcome{Status: action.Indeterminate, Err: fmt.Errorf("executor returned no outcome: %w", action.ErrUnreachable)}
	}
	r.record(phase, a, out)

	switch out.Status {
	case action.Confirmed:
	case action.Skipped:
		slog.WarnContext(ctx, "action skipped", "round", r.Round, "phase", phase, "kind", a.Kind, "actor", a.Actor, "err", out.Err)
	default:
		slog.ErrorContext(ctx, "action failed", "round", r.Round, "phase", phase, "kind", a.Kind, "actor", a.Actor, "status", out.Status, "err", out.Err)
	}
	return out
}

// retryable returns true if a failed sell should be queued again. An actor
// without any asset has nothing left to sell.
func retryable(out *action.Outcome) bool {
	if out.OK() {
		return false
	}
	return !errors.Is(out.Err, action.ErrInsufficientBalance)
}
