// Copyright (c) 2023 BVK Chaitanya

package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/ctxutil"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"
)

// Client builds signed swap transactions between the native currency and an
// asset using the Jupiter v6 quote and swap apis.
type Client struct {
	opts Options

	client *http.Client

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
	c.client = &http.Client{Timeout: c.opts.HTTPTimeout}
	c.limiter = rate.NewLimiter(rate.Limit(c.opts.RequestsPerSecond), 1)
	return c, nil
}

// errEmpty is returned when the api responded without a usable result.
var errEmpty = errors.New("empty response")

type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

type quote struct {
	raw json.RawMessage

	OutAmount string `json:"outAmount"`
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

func (c *Client) BuildBuy(ctx context.Context, owner solana.PrivateKey, asset solana.PublicKey, lamports uint64) (*action.Payload, error) {
	return c.build(ctx, owner, solana.SolMint, asset, lamports, c.opts.BuyPriorityFee)
}

func (c *Client) BuildSell(ctx context.Context, owner solana.PrivateKey, asset solana.PublicKey, amount uint64) (*action.Payload, error) {
	return c.build(ctx, owner, asset, solana.SolMint, amount, c.opts.SellPriorityFee)
}

func (c *Client) build(ctx context.Context, owner solana.PrivateKey, input, output solana.PublicKey, amount, fee uint64) (*action.Payload, error) {
	if amount == 0 {
		return nil, fmt.Errorf("swap amount cannot be zero: %w", action.ErrInsufficientBalance)
	}

	var lastErr error
	for i := 0; i < c.opts.Attempts; i++ {
		if i > 0 {
			if err := ctxutil.Backoff(ctx, c.opts.RetryInterval); err != nil {
				return nil, err
			}
		}

		payload, err := c.tryBuild(ctx, owner, input, output, amount, fee)
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, action.ErrNoRoute) {
			return nil, err
		}
		lastErr = err
		slog.WarnContext(ctx, "could not build swap transaction (retrying)", "input", input, "output", output, "amount", amount, "err", err)
	}
	if errors.Is(lastErr, errEmpty) {
		return nil, fmt.Errorf("no swap transaction after %d attempts: %w", c.opts.Attempts, action.ErrNoRoute)
	}
	return nil, fmt.Errorf("could not build swap transaction: %w: %w", action.ErrUnreachable, lastErr)
}

func (c *Client) tryBuild(ctx context.Context, owner solana.PrivateKey, input, output solana.PublicKey, amount, fee uint64) (*action.Payload, error) {
	q, err := c.quote(ctx, input, output, amount)
	if err != nil {
		return nil, err
	}

	req := &swapRequest{
		QuoteResponse:             q.raw,
		UserPublicKey:             owner.PublicKey().String(),
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: fee,
	}
	resp := new(swapResponse)
	if err := c.post(ctx, "/v6/swap", req, resp); err != nil {
		return nil, err
	}
	if len(resp.SwapTransaction) == 0 {
		return nil, fmt.Errorf("swap response has no transaction: %w", errEmpty)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("could not decode swap transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal swap transaction: %w", err)
	}
	signer := func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner.PublicKey()) {
			return &owner
		}
		return nil
	}
	if _, err := tx.Sign(signer); err != nil {
		return nil, fmt.Errorf("could not sign swap transaction: %w", err)
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal signed transaction: %w", err)
	}
	return &action.Payload{
		Raw:                  signed,
		Blockhash:            tx.Message.RecentBlockhash,
		LastValidBlockHeight: resp.LastValidBlockHeight,
	}, nil
}

func (c *Client) quote(ctx context.Context, input, output solana.PublicKey, amount uint64) (*quote, error) {
	values := url.Values{}
	values.Set("inputMint", input.String())
	values.Set("outputMint", output.String())
	values.Set("amount", strconv.FormatUint(amount, 10))
	values.Set("slippageBps", strconv.Itoa(c.opts.SlippageBps))

	var raw json.RawMessage
	if err := c.get(ctx, "/v6/quote", values, &raw); err != nil {
		return nil, err
	}
	q := &quote{raw: raw}
	if err := json.Unmarshal(raw, q); err != nil {
		return nil, fmt.Errorf("could not decode quote: %w", err)
	}
	if len(q.OutAmount) == 0 {
		return nil, fmt.Errorf("quote has no output amount: %w", errEmpty)
	}
	return q, nil
}

func (c *Client) get(ctx context.Context, path string, values url.Values, result any) error {
	u := c.opts.BaseURL + path + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("could not create get request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("could not json-encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("could not create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not perform %s request: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		aerr := new(apiError)
		if err := json.NewDecoder(resp.Body).Decode(aerr); err == nil && len(aerr.ErrorCode) != 0 {
			if isNoRoute(aerr.ErrorCode) {
				return fmt.Errorf("%s: %w", aerr.Error, action.ErrNoRoute)
			}
			return fmt.Errorf("request failed with http-status %d and error %q", resp.StatusCode, aerr.Error)
		}
		return fmt.Errorf("request failed with http-status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("could not json-decode response: %w", err)
	}
	return nil
}

func isNoRoute(code string) bool {
	switch code {
	case "COULD_NOT_FIND_ANY_ROUTE", "NO_ROUTES_FOUND", "TOKEN_NOT_TRADABLE":
		return true
	}
	return false
}
