// Copyright (c) 2023 BVK Chaitanya

package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

type testKeys map[solana.PublicKey]solana.PrivateKey

func (k testKeys) PrivateKey(pub solana.PublicKey) (solana.PrivateKey, bool) {
	v, ok := k[pub]
	return v, ok
}

type testFactory struct {
	noRoutes int
	calls    int
	amounts  []uint64
}

func (f *testFactory) build(amount uint64) (*Payload, error) {
	f.calls++
	f.amounts = append(f.amounts, amount)
	if f.calls <= f.noRoutes {
		return nil, ErrNoRoute
	}
	return &Payload{Raw: []byte{1}}, nil
}

func (f *testFactory) BuildBuy(_ context.Context, _ solana.PrivateKey, _ solana.PublicKey, lamports uint64) (*Payload, error) {
	return f.build(lamports)
}

func (f *testFactory) BuildSell(_ context.Context, _ solana.PrivateKey, _ solana.PublicKey, amount uint64) (*Payload, error) {
	return f.build(amount)
}

type testSubmitter struct {
	submitted int
}

func (s *testSubmitter) Submit(context.Context, *Payload) *Outcome {
	s.submitted++
	return &Outcome{Status: Confirmed}
}

type testBalances uint64

func (b testBalances) AssetBalance(context.Context, solana.PublicKey, solana.PublicKey) (uint64, error) {
	return uint64(b), nil
}

func newTestActor(t *testing.T) (solana.PrivateKey, testKeys) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	return key, testKeys{key.PublicKey(): key}
}

func TestExecutorNoRouteAbandon(t *testing.T) {
	ctx := context.Background()
	key, keys := newTestActor(t)

	f := &testFactory{noRoutes: 1}
	s := new(testSubmitter)
	e := NewExecutor(keys, f, s, testBalances(0), Abandon)

	out := e.Execute(ctx, &Action{Actor: key.PublicKey(), Kind: Buy, Amount: 10})
	if out.OK() || !errors.Is(out.Err, ErrNoRoute) {
		t.Fatalf("want no-route failure, got %v", out.Err)
	}
	if f.calls != 1 || s.submitted != 0 {
		t.Fatalf("want 1 build and 0 submits, got %d and %d", f.calls, s.submitted)
	}
}

func TestExecutorNoRouteRetry(t *testing.T) {
	ctx := context.Background()
	key, keys := newTestActor(t)

	f := &testFactory{noRoutes: 2}
	s := new(testSubmitter)
	e := NewExecutor(keys, f, s, testBalances(0), RetryNoRoute(time.Millisecond, 0))

	if out := e.Execute(ctx, &Action{Actor: key.PublicKey(), Kind: Buy, Amount: 10}); !out.OK() {
		t.Fatalf("want success, got %v", out.Err)
	}
	if f.calls != 3 || s.submitted != 1 {
		t.Fatalf("want 3 builds and 1 submit, got %d and %d", f.calls, s.submitted)
	}

	f = &testFactory{noRoutes: 5}
	e = NewExecutor(keys, f, s, testBalances(0), RetryNoRoute(time.Millisecond, 2))
	if out := e.Execute(ctx, &Action{Actor: key.PublicKey(), Kind: Buy, Amount: 10}); !errors.Is(out.Err, ErrNoRoute) {
		t.Fatalf("want no-route after limit, got %v", out.Err)
	}
	if f.calls != 2 {
		t.Fatalf("want 2 builds, got %d", f.calls)
	}
}

func TestExecutorSellAll(t *testing.T) {
	ctx := context.Background()
	key, keys := newTestActor(t)

	f := new(testFactory)
	s := new(testSubmitter)
	e := NewExecutor(keys, f, s, testBalances(777), Abandon)
	if out := e.Execute(ctx, &Action{Actor: key.PublicKey(), Kind: Sell}); !out.OK() {
		t.Fatalf("want success, got %v", out.Err)
	}
	if len(f.amounts) != 1 || f.amounts[0] != 777 {
		t.Fatalf("want sell of entire balance 777, got %v", f.amounts)
	}

	e = NewExecutor(keys, f, s, testBalances(0), Abandon)
	out := e.Execute(ctx, &Action{Actor: key.PublicKey(), Kind: Sell})
	if out.Status != Skipped || !errors.Is(out.Err, ErrInsufficientBalance) {
		t.Fatalf("want skipped sell, got %v %v", out.Status, out.Err)
	}
}

func TestExecutorUnknownActor(t *testing.T) {
	other, _ := newTestActor(t)
	_, keys := newTestActor(t)
	e := NewExecutor(keys, new(testFactory), new(testSubmitter), testBalances(0), Abandon)
	if out := e.Execute(context.Background(), &Action{Actor: other.PublicKey(), Kind: Buy, Amount: 1}); out.Status != Skipped {
		t.Fatalf("want skipped, got %v", out.Status)
	}
}

func TestTxErrorIsRejected(t *testing.T) {
	var err error = &TxError{Payload: map[string]any{"InstructionError": []any{0, "Custom"}}}
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("tx error must match ErrRejected")
	}
}
