// Copyright (c) 2023 BVK Chaitanya

package funding

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/actor"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type testNetwork struct {
	// balances are returned in order; the last one repeats.
	balances []uint64
	reads    int
}

func (n *testNetwork) Balance(context.Context, solana.PublicKey) (uint64, error) {
	i := min(n.reads, len(n.balances)-1)
	n.reads++
	return n.balances[i], nil
}

func (n *testNetwork) LatestBlockhash(context.Context) (solana.Hash, uint64, error) {
	return solana.Hash{9}, 1000, nil
}

type transfer struct {
	to       solana.PublicKey
	lamports uint64
}

type testSubmitter struct {
	t *testing.T

	failures  int
	transfers []transfer
}

func (s *testSubmitter) Submit(_ context.Context, p *action.Payload) *action.Outcome {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(p.Raw))
	if err != nil {
		s.t.Fatalf("could not decode transfer: %v", err)
	}
	if err := tx.VerifySignatures(); err != nil {
		s.t.Fatalf("transfer is not signed: %v", err)
	}
	inst := tx.Message.Instructions[0]
	to := tx.Message.AccountKeys[inst.Accounts[1]]
	lamports := binary.LittleEndian.Uint64(inst.Data[4:12])
	s.transfers = append(s.transfers, transfer{to: to, lamports: lamports})

	if len(s.transfers) <= s.failures {
		return &action.Outcome{Status: action.Indeterminate, Err: action.ErrUnreachable}
	}
	return &action.Outcome{Status: action.Confirmed}
}

func setup(t *testing.T, db kv.Database) (*actor.Store, *actor.Actor) {
	store := actor.NewStore(db)
	source, err := store.Generate(context.Background(), "generate")
	if err != nil {
		t.Fatal(err)
	}
	return store, source
}

func countActors(t *testing.T, store *actor.Store) int {
	actors, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(actors)
}

var fastBackoff = &Options{Backoff: time.Millisecond}

func TestPropagateBelowThreshold(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	store, source := setup(t, db)

	sub := &testSubmitter{t: t}
	p, err := New(db, store, &testNetwork{balances: []uint64{5_000_000}}, sub, fastBackoff)
	if err != nil {
		t.Fatal(err)
	}
	target, err := p.Propagate(ctx, source, nil)
	if err != nil || target != nil {
		t.Fatalf("want no target and no error, got %v %v", target, err)
	}
	if n := countActors(t, store); n != 1 {
		t.Fatalf("no actor must be generated, got %d actors", n)
	}
	if len(sub.transfers) != 0 {
		t.Fatalf("no transfer must be attempted")
	}
}

func TestPropagateRetriesSameTarget(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	store, source := setup(t, db)

	sub := &testSubmitter{t: t, failures: 1}
	p, err := New(db, store, &testNetwork{balances: []uint64{10_000_000}}, sub, fastBackoff)
	if err != nil {
		t.Fatal(err)
	}
	target, err := p.Propagate(ctx, source, nil)
	if err != nil {
		t.Fatal(err)
	}
	if target == nil {
		t.Fatalf("want a funded target")
	}

	if len(sub.transfers) != 2 {
		t.Fatalf("want 2 transfer attempts, got %d", len(sub.transfers))
	}
	for _, tr := range sub.transfers {
		if !tr.to.Equals(target.PublicKey()) {
			t.Fatalf("retry used a different target %s", tr.to)
		}
		if tr.lamports != 9_000_000 {
			t.Fatalf("want 9000000 lamports, got %d", tr.lamports)
		}
	}
	if n := countActors(t, store); n != 2 {
		t.Fatalf("target must be generated exactly once, got %d actors", n)
	}
	if split, err := p.Pending(ctx, source.PublicKey()); err != nil || split != nil {
		t.Fatalf("pending split must be cleared, got %v %v", split, err)
	}
}

func TestPropagateResumesAfterRestart(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	store, source := setup(t, db)

	net := &testNetwork{balances: []uint64{10_000_000}}
	failing := &testSubmitter{t: t, failures: 100}
	p1, err := New(db, store, net, failing, &Options{Backoff: time.Millisecond, MaxAttempts: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p1.Propagate(ctx, source, nil); !errors.Is(err, action.ErrUnreachable) {
		t.Fatalf("want unreachable error after bounded attempts, got %v", err)
	}
	split, err := p1.Pending(ctx, source.PublicKey())
	if err != nil || split == nil {
		t.Fatalf("want pending split, got %v %v", split, err)
	}
	if split.Attempts != 2 {
		t.Fatalf("want 2 recorded attempts, got %d", split.Attempts)
	}

	ok := &testSubmitter{t: t}
	p2, err := New(db, store, net, ok, fastBackoff)
	if err != nil {
		t.Fatal(err)
	}
	target, err := p2.Propagate(ctx, source, nil)
	if err != nil {
		t.Fatal(err)
	}
	if target.String() != split.Target {
		t.Fatalf("want resumed target %s, got %s", split.Target, target)
	}
	if !failing.transfers[0].to.Equals(target.PublicKey()) {
		t.Fatalf("restart must reuse the first target")
	}
	if n := countActors(t, store); n != 2 {
		t.Fatalf("target must be generated exactly once, got %d actors", n)
	}
}

func TestPropagateSourceDrained(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	store, source := setup(t, db)

	sub := &testSubmitter{t: t, failures: 1}
	p, err := New(db, store, &testNetwork{balances: []uint64{10_000_000, 1_000_000}}, sub, fastBackoff)
	if err != nil {
		t.Fatal(err)
	}
	target, err := p.Propagate(ctx, source, nil)
	if err != nil || target != nil {
		t.Fatalf("want no target and no error, got %v %v", target, err)
	}
	if split, _ := p.Pending(ctx, source.PublicKey()); split == nil {
		t.Fatalf("pending split must survive for the next invocation")
	}
}

func TestPropagateExistingTarget(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	store, source := setup(t, db)
	existing, err := store.Generate(ctx, "generate")
	if err != nil {
		t.Fatal(err)
	}

	sub := &testSubmitter{t: t}
	p, err := New(db, store, &testNetwork{balances: []uint64{20_000_000}}, sub, fastBackoff)
	if err != nil {
		t.Fatal(err)
	}
	target, err := p.Propagate(ctx, source, existing)
	if err != nil {
		t.Fatal(err)
	}
	if !target.PublicKey().Equals(existing.PublicKey()) {
		t.Fatalf("want existing target")
	}
	if n := countActors(t, store); n != 2 {
		t.Fatalf("no new actor must be generated, got %d actors", n)
	}
	if sub.transfers[0].lamports != 19_000_000 {
		t.Fatalf("want 19000000 lamports, got %d", sub.transfers[0].lamports)
	}
}

func TestPropagateRefusesOtherTargetWhilePending(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	store, source := setup(t, db)

	net := &testNetwork{balances: []uint64{10_000_000}}
	failing := &testSubmitter{t: t, failures: 100}
	p, err := New(db, store, net, failing, &Options{Backoff: time.Millisecond, MaxAttempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Propagate(ctx, source, nil); !errors.Is(err, action.ErrUnreachable) {
		t.Fatalf("want unreachable error, got %v", err)
	}
	split, err := p.Pending(ctx, source.PublicKey())
	if err != nil || split == nil {
		t.Fatalf("want pending split, got %v %v", split, err)
	}

	other, err := store.Generate(ctx, "generate")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Propagate(ctx, source, other); !errors.Is(err, os.ErrExist) {
		t.Fatalf("want already exists error, got %v", err)
	}
	if len(failing.transfers) != 1 {
		t.Fatalf("no transfer to the other target must be attempted, got %d transfers", len(failing.transfers))
	}
	after, err := p.Pending(ctx, source.PublicKey())
	if err != nil || after == nil || after.Target != split.Target {
		t.Fatalf("pending split must keep its target, got %v %v", after, err)
	}
}

func TestOptionsCheck(t *testing.T) {
	if _, err := New(nil, nil, nil, nil, &Options{MinFunding: 10, FeeReserve: 20}); err == nil {
		t.Fatalf("want error when fee reserve exceeds the threshold")
	}
}
