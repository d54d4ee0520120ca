// Copyright (c) 2023 BVK Chaitanya

package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"golang.org/x/time/rate"
)

// Client is a rate limited wrapper over the Solana JSON-RPC api.
type Client struct {
	opts Options

	rpc *rpc.Client

	limiter *rate.Limiter
}

func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	c := &Client{opts: *opts}
	c.opts.setDefaults()
	if err := c.opts.Check(); err != nil {
		return nil, err
	}
	c.rpc = rpc.New(c.opts.Endpoint)
	c.limiter = rate.NewLimiter(rate.Limit(c.opts.RequestsPerSecond), 1)
	return c, nil
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) Endpoint() string {
	return c.opts.Endpoint
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// Balance returns the native balance of an account in lamports.
func (c *Client) Balance(ctx context.Context, pub solana.PublicKey) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	r, err := c.rpc.GetBalance(ctx, pub, c.opts.Commitment)
	if err != nil {
		return 0, fmt.Errorf("could not get balance for %s: %w", pub, err)
	}
	return r.Value, nil
}

// TokenAmount returns the asset balance held by the owner's associated token
// account. A missing token account is reported as a zero amount.
func (c *Client) TokenAmount(ctx context.Context, owner, mint solana.PublicKey) (*rpc.UiTokenAmount, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("could not derive token account for %s: %w", owner, err)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	r, err := c.rpc.GetTokenAccountBalance(ctx, ata, c.opts.Commitment)
	if err != nil {
		if isAccountNotFound(err) {
			return &rpc.UiTokenAmount{Amount: "0", UiAmountString: "0"}, nil
		}
		return nil, fmt.Errorf("could not get token balance for %s: %w", owner, err)
	}
	if r.Value == nil {
		return &rpc.UiTokenAmount{Amount: "0", UiAmountString: "0"}, nil
	}
	return r.Value, nil
}

// AssetBalance returns the owner's asset balance in base units.
func (c *Client) AssetBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	amount, err := c.TokenAmount(ctx, owner, mint)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(amount.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse token amount %q: %w", amount.Amount, err)
	}
	return v, nil
}

// LatestBlockhash returns a recent blockhash and the last block height at
// which it is valid.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Hash{}, 0, err
	}
	r, err := c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("could not get latest blockhash: %w", err)
	}
	if r.Value == nil {
		return solana.Hash{}, 0, fmt.Errorf("latest blockhash response has no value")
	}
	return r.Value.Blockhash, r.Value.LastValidBlockHeight, nil
}

// SendRaw submits a signed transaction without local pre-validation.
func (c *Client) SendRaw(ctx context.Context, raw []byte) (solana.Signature, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	var maxRetries uint = c.opts.SendMaxRetries
	opts := rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: c.opts.Commitment,
		MaxRetries:          &maxRetries,
	}
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, raw, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("could not send transaction: %w", err)
	}
	slog.DebugContext(ctx, "sent transaction", "signature", sig)
	return sig, nil
}

// SignatureStatus returns the status of a transaction or nil if the network
// doesn't know about it yet.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	r, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get signature status: %w", err)
	}
	if len(r.Value) == 0 {
		return nil, nil
	}
	return r.Value[0], nil
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	h, err := c.rpc.GetBlockHeight(ctx, c.opts.Commitment)
	if err != nil {
		return 0, fmt.Errorf("could not get block height: %w", err)
	}
	return h, nil
}

func isAccountNotFound(err error) bool {
	var rerr *jsonrpc.RPCError
	if errors.As(err, &rerr) {
		return strings.Contains(rerr.Message, "could not find account")
	}
	return false
}
