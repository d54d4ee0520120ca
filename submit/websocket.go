// Copyright (c) 2023 BVK Chaitanya

package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

// WebsocketConfirmer waits for a signatureNotification over the rpc pubsub
// endpoint. Block height is polled over the regular rpc endpoint to detect
// blockhash expiry.
type WebsocketConfirmer struct {
	url string

	opts Options

	net Network
}

func NewWebsocketConfirmer(url string, net Network, opts *Options) *WebsocketConfirmer {
	if opts == nil {
		opts = new(Options)
	}
	w := &WebsocketConfirmer{url: url, opts: *opts, net: net}
	w.opts.setDefaults()
	return w
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsMessage struct {
	ID     *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Method string `json:"method"`
	Params *struct {
		Result struct {
			Value struct {
				Err any `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (w *WebsocketConfirmer) Confirm(ctx context.Context, sig solana.Signature, lastValid uint64) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("could not dial %s: %w: %w", w.url, action.ErrUnreachable, err)
	}
	defer conn.Close()

	req := &wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []any{
			sig.String(),
			map[string]string{"commitment": string(w.opts.Level)},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("could not subscribe: %w: %w", action.ErrUnreachable, err)
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- w.receive(conn, sig)
	}()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-resultCh:
			return err
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", action.ErrUnreachable, context.Cause(ctx))
		case <-ticker.C:
			if lastValid == 0 {
				continue
			}
			height, err := w.net.BlockHeight(ctx)
			if err != nil || height <= lastValid {
				continue
			}
			// Notification may have been missed around the expiry.
			status, err := w.net.SignatureStatus(ctx, sig)
			if err != nil {
				return fmt.Errorf("%w: %w", action.ErrUnreachable, err)
			}
			if ok, err := reached(sig, status, w.opts.Level); err != nil || ok {
				return err
			}
			return fmt.Errorf("transaction %s not confirmed by block height %d: %w", sig, lastValid, ErrExpired)
		}
	}
}

func (w *WebsocketConfirmer) receive(conn *websocket.Conn, sig solana.Signature) error {
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("could not read notification: %w: %w", action.ErrUnreachable, err)
		}
		if msg.Error != nil {
			return fmt.Errorf("subscription failed with %q: %w", msg.Error.Message, action.ErrUnreachable)
		}
		if msg.Method != "signatureNotification" || msg.Params == nil {
			continue
		}
		if v := msg.Params.Result.Value.Err; v != nil {
			return &action.TxError{Signature: sig, Payload: v}
		}
		return nil
	}
}
