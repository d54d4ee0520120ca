// Copyright (c) 2023 BVK Chaitanya

package cycle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/bvk/volumebot/action"
)

type testExecutor struct {
	// failures holds number of times an action id should fail before it
	// succeeds. Negative values fail forever.
	failures map[string]int

	// empty holds action ids that fail with insufficient balance.
	empty map[string]bool

	cancel func()
	after  int

	seq []string
}

func (e *testExecutor) Execute(_ context.Context, a *action.Action) *action.Outcome {
	e.seq = append(e.seq, a.ID)
	if e.cancel != nil && len(e.seq) == e.after {
		e.cancel()
	}
	if e.empty[a.ID] {
		return &action.Outcome{Status: action.Skipped, Err: action.ErrInsufficientBalance}
	}
	if n, ok := e.failures[a.ID]; ok && n != 0 {
		e.failures[a.ID] = n - 1
		return &action.Outcome{Status: action.Failed, Err: action.ErrRejected}
	}
	return &action.Outcome{Status: action.Confirmed}
}

func makePairs(names ...string) []Pair {
	var pairs []Pair
	for _, n := range names {
		pairs = append(pairs, Pair{
			Buy:  &action.Action{ID: "b" + n, Kind: action.Buy, Amount: 1},
			Sell: &action.Action{ID: "s" + n, Kind: action.Sell},
		})
	}
	return pairs
}

func runRound(t *testing.T, ctx context.Context, e *testExecutor, opts *Options, pairs []Pair) *Report {
	o, err := New(e, opts)
	if err != nil {
		t.Fatal(err)
	}
	return o.RunRound(ctx, 1, pairs)
}

func TestStaggeredOrder(t *testing.T) {
	ctx := context.Background()
	e := new(testExecutor)
	r := runRound(t, ctx, e, nil, makePairs("A", "B", "C"))

	want := []string{"bA", "bB", "sA", "bC", "sB", "sC"}
	if !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	phases := []Phase{PhaseBuy, PhaseBuy, PhasePipeline, PhaseBuy, PhasePipeline, PhaseDrain}
	for i, s := range r.Trace {
		if s.Phase != phases[i] {
			t.Fatalf("step %d: want phase %s, got %s", i, phases[i], s.Phase)
		}
	}
	if r.Buys.Confirmed != 3 || r.Sells.Confirmed != 3 || r.QueueLen != 0 {
		t.Fatalf("unexpected counts %+v %+v queue %d", r.Buys, r.Sells, r.QueueLen)
	}
}

func TestStaggeredSingleActor(t *testing.T) {
	e := new(testExecutor)
	r := runRound(t, context.Background(), e, nil, makePairs("A"))
	if want := []string{"bA", "sA"}; !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	if r.Trace[1].Phase != PhaseDrain {
		t.Fatalf("single actor sell must run in the drain phase")
	}
}

func TestStaggeredEmpty(t *testing.T) {
	e := new(testExecutor)
	r := runRound(t, context.Background(), e, nil, nil)
	if len(e.seq) != 0 || len(r.Trace) != 0 || r.QueueLen != 0 {
		t.Fatalf("empty round must not execute anything")
	}
}

func TestStaggeredFailedSellRetriedFirst(t *testing.T) {
	e := &testExecutor{failures: map[string]int{"sB": 1}}
	r := runRound(t, context.Background(), e, nil, makePairs("A", "B", "C"))

	want := []string{"bA", "bB", "sA", "bC", "sB", "sB", "sC"}
	if !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	if r.Sells.Confirmed != 3 || r.Sells.Failed != 1 {
		t.Fatalf("unexpected sell counts %+v", r.Sells)
	}
}

func TestStaggeredFailedBuyStillSells(t *testing.T) {
	e := &testExecutor{failures: map[string]int{"bB": -1}}
	r := runRound(t, context.Background(), e, nil, makePairs("A", "B", "C"))

	want := []string{"bA", "bB", "sA", "bC", "sB", "sC"}
	if !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	if r.Buys.Failed != 1 || r.Sells.Total() != 3 {
		t.Fatalf("unexpected counts %+v %+v", r.Buys, r.Sells)
	}
}

func TestStaggeredPermanentFailureDropped(t *testing.T) {
	e := &testExecutor{failures: map[string]int{"sA": -1}}
	r := runRound(t, context.Background(), e, nil, makePairs("A", "B", "C", "D"))

	want := []string{"bA", "bB", "sA", "bC", "sA", "bD", "sA", "sA", "sB", "sC", "sD"}
	if !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	if r.QueueLen != 0 {
		t.Fatalf("queue must be drained, got %d", r.QueueLen)
	}
}

func TestStaggeredEmptySellNotRetried(t *testing.T) {
	e := &testExecutor{empty: map[string]bool{"sA": true}}
	r := runRound(t, context.Background(), e, nil, makePairs("A", "B", "C"))

	want := []string{"bA", "bB", "sA", "bC", "sB", "sC"}
	if !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	if r.Sells.Skipped != 1 {
		t.Fatalf("want one skipped sell, got %+v", r.Sells)
	}
}

func TestStaggeredEverySellOnce(t *testing.T) {
	for n := 1; n <= 12; n++ {
		var names []string
		for i := 0; i < n; i++ {
			names = append(names, fmt.Sprintf("%02d", i))
		}
		e := new(testExecutor)
		r := runRound(t, context.Background(), e, nil, makePairs(names...))

		count := make(map[string]int)
		for _, id := range e.seq {
			count[id]++
		}
		for _, name := range names {
			if count["b"+name] != 1 || count["s"+name] != 1 {
				t.Fatalf("n=%d: actor %s executed %d buys and %d sells", n, name, count["b"+name], count["s"+name])
			}
		}
		if r.Sells.Total() != n || r.Buys.Total() != n {
			t.Fatalf("n=%d: want %d buys and sells, got %d and %d", n, n, r.Buys.Total(), r.Sells.Total())
		}
		// Every sell runs after its own buy and, except for the drain phase,
		// after the buy of the next actor.
		for i, name := range names {
			bpos := slices.Index(e.seq, "b"+name)
			spos := slices.Index(e.seq, "s"+name)
			if spos < bpos {
				t.Fatalf("n=%d: sell before buy for %s", n, name)
			}
			if i+1 < n {
				if next := slices.Index(e.seq, "b"+names[i+1]); spos < next {
					t.Fatalf("n=%d: sell of %s did not lag the next buy", n, name)
				}
			}
		}
	}
}

func TestLockstep(t *testing.T) {
	e := &testExecutor{failures: map[string]int{"sA": 1}}
	r := runRound(t, context.Background(), e, &Options{Policy: Lockstep}, makePairs("A", "B"))

	want := []string{"bA", "sA", "bB", "sB"}
	if !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	if r.Sells.Failed != 1 || r.Sells.Confirmed != 1 {
		t.Fatalf("unexpected sell counts %+v", r.Sells)
	}
}

func TestSellThenBuy(t *testing.T) {
	e := new(testExecutor)
	runRound(t, context.Background(), e, &Options{Policy: SellThenBuy}, makePairs("A", "B", "C"))

	want := []string{"sA", "sB", "sC", "bA", "bB", "bC"}
	if !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
}

func TestShuffleKeepsPairs(t *testing.T) {
	e := new(testExecutor)
	opts := &Options{Shuffle: true, Rand: rand.New(rand.NewPCG(1, 2))}
	pairs := makePairs("A", "B", "C", "D", "E")
	runRound(t, context.Background(), e, opts, pairs)

	if len(e.seq) != 10 {
		t.Fatalf("want 10 executions, got %d", len(e.seq))
	}
	if pairs[0].Buy.ID != "bA" {
		t.Fatalf("input pairs must not be reordered")
	}
}

func TestStaggeredCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel after the second execution (bB) while sA is still queued.
	e := &testExecutor{cancel: cancel, after: 2}
	r := runRound(t, ctx, e, nil, makePairs("A", "B", "C"))

	if want := []string{"bA", "bB", "sA", "bC", "sB", "sC"}; !slices.Equal(e.seq, want) {
		t.Fatalf("want the round to run to completion %v, got %v", want, e.seq)
	}
	if r.QueueLen != 0 {
		t.Fatalf("want no pending sells, got %d", r.QueueLen)
	}
	if r.Buys.Confirmed != 3 || r.Sells.Confirmed != 3 {
		t.Fatalf("unexpected counts %+v %+v", r.Buys, r.Sells)
	}
}

func TestLockstepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := &testExecutor{cancel: cancel, after: 2}
	r := runRound(t, ctx, e, &Options{Policy: Lockstep}, makePairs("A", "B"))

	if want := []string{"bA", "sA", "bB", "sB"}; !slices.Equal(e.seq, want) {
		t.Fatalf("want %v, got %v", want, e.seq)
	}
	if r.QueueLen != 0 || r.Sells.Confirmed != 2 {
		t.Fatalf("want every sell executed, got queue %d sells %+v", r.QueueLen, r.Sells)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{Staggered, Lockstep, SellThenBuy} {
		v, err := ParsePolicy(p.String())
		if err != nil || v != p {
			t.Fatalf("want %v, got %v (%v)", p, v, err)
		}
	}
	if _, err := ParsePolicy("random"); err == nil {
		t.Fatalf("want error for unknown policy")
	}
}
