// Copyright (c) 2023 BVK Chaitanya

package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func newTestServer(t *testing.T, results map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("could not decode rpc request: %v", err)
			return
		}
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32602,"message":"Invalid param: could not find account"}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	s := newTestServer(t, map[string]string{
		"getBalance":     `{"context":{"slot":1},"value":120000000}`,
		"getBlockHeight": `4242`,
		"getLatestBlockhash": `{"context":{"slot":1},"value":{"blockhash":"` + solana.Hash{1, 2, 3}.String() +
			`","lastValidBlockHeight":4400}}`,
	})
	defer s.Close()

	c, err := New(&Options{Endpoint: s.URL, RequestsPerSecond: 1000})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	owner := solana.NewWallet().PublicKey()
	balance, err := c.Balance(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 120_000_000 {
		t.Fatalf("want 120000000, got %d", balance)
	}

	height, err := c.BlockHeight(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if height != 4242 {
		t.Fatalf("want 4242, got %d", height)
	}

	hash, last, err := c.LatestBlockhash(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !hash.Equals(solana.Hash{1, 2, 3}) || last != 4400 {
		t.Fatalf("unexpected blockhash %s at %d", hash, last)
	}

	// Missing token accounts hold zero assets.
	amount, err := c.AssetBalance(ctx, owner, solana.SolMint)
	if err != nil {
		t.Fatal(err)
	}
	if amount != 0 {
		t.Fatalf("want zero asset balance, got %d", amount)
	}
}

func TestAssetBalance(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"getTokenAccountBalance": `{"context":{"slot":1},"value":{"amount":"1500000","decimals":6,"uiAmount":1.5,"uiAmountString":"1.5"}}`,
	})
	defer s.Close()

	c, err := New(&Options{Endpoint: s.URL, RequestsPerSecond: 1000})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	amount, err := c.AssetBalance(context.Background(), solana.NewWallet().PublicKey(), solana.SolMint)
	if err != nil {
		t.Fatal(err)
	}
	if amount != 1_500_000 {
		t.Fatalf("want 1500000, got %d", amount)
	}
}

func TestOptionsCheck(t *testing.T) {
	if _, err := New(&Options{Endpoint: "ws://localhost:8900"}); err == nil {
		t.Fatalf("want error for websocket endpoint")
	}
}
