// Copyright (c) 2023 BVK Chaitanya

package eligibility

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/bvk/volumebot/action"
)

func TestIsEligible(t *testing.T) {
	g, err := New(&Options{MinTrade: 1_000_000, MaxTrade: 60_000_000}, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		balance uint64
		want    bool
	}{
		{0, false},
		{50_000_000, false},
		{119_999_999, false},
		{120_000_000, true},
		{500_000_000, true},
	}
	for _, test := range tests {
		if got := g.IsEligible(test.balance); got != test.want {
			t.Fatalf("balance %d: want %v, got %v", test.balance, test.want, got)
		}
	}
}

func TestReserve(t *testing.T) {
	g, err := New(&Options{MinTrade: 10, MaxTrade: 10, Baseline: 1, Reserve: 100}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.IsEligible(109) {
		t.Fatalf("balance below reserve plus minimum trade must not be eligible")
	}
	if !g.IsEligible(110) {
		t.Fatalf("balance at reserve plus minimum trade must be eligible")
	}
	if _, err := g.Check(50); !errors.Is(err, action.ErrInsufficientBalance) {
		t.Fatalf("want insufficient balance, got %v", err)
	}
}

func TestTradeSize(t *testing.T) {
	g, err := New(&Options{MinTrade: 100, MaxTrade: 200}, rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		v := g.TradeSize()
		if v < 100 || v > 200 {
			t.Fatalf("trade size %d out of range", v)
		}
		seen[v] = true
	}
	if len(seen) < 2 {
		t.Fatalf("trade size must not be cached across calls")
	}
}

func TestCheckCapsToBalance(t *testing.T) {
	g, err := New(&Options{MinTrade: 10, MaxTrade: 1000, Baseline: 1, Reserve: 5}, rand.New(rand.NewPCG(5, 6)))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		size, err := g.Check(20)
		if err != nil {
			t.Fatal(err)
		}
		if size > 15 {
			t.Fatalf("trade size %d eats into the reserve", size)
		}
	}
}

func TestOptionsCheck(t *testing.T) {
	if _, err := New(&Options{}, nil); err == nil {
		t.Fatalf("want error for zero minimum trade")
	}
	if _, err := New(&Options{MinTrade: 10, MaxTrade: 5}, nil); err == nil {
		t.Fatalf("want error for inverted range")
	}
}
