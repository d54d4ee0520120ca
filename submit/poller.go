// Copyright (c) 2023 BVK Chaitanya

package submit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/ctxutil"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type Options struct {
	// PollInterval is the delay between two status checks.
	PollInterval time.Duration

	// MaxErrors is the number of consecutive rpc failures after which the
	// outcome is declared unknown.
	MaxErrors int

	// Level is the confirmation level treated as success.
	Level rpc.ConfirmationStatusType
}

func (v *Options) setDefaults() {
	if v.PollInterval == 0 {
		v.PollInterval = 2 * time.Second
	}
	if v.MaxErrors == 0 {
		v.MaxErrors = 5
	}
	if len(v.Level) == 0 {
		v.Level = rpc.ConfirmationStatusConfirmed
	}
}

// Poller confirms transactions by polling signature statuses until the
// blockhash expires.
type Poller struct {
	opts Options

	net Network
}

func NewPoller(net Network, opts *Options) *Poller {
	if opts == nil {
		opts = new(Options)
	}
	p := &Poller{opts: *opts, net: net}
	p.opts.setDefaults()
	return p
}

func (p *Poller) Confirm(ctx context.Context, sig solana.Signature, lastValid uint64) error {
	nerrors := 0
	failed := func(err error) error {
		nerrors++
		if nerrors >= p.opts.MaxErrors {
			return fmt.Errorf("%w: %w", action.ErrUnreachable, err)
		}
		slog.WarnContext(ctx, "could not check transaction status (retrying)", "signature", sig, "err", err)
		return nil
	}

	for {
		// Block height is read before the status so that a transaction that
		// landed before the expiry is always observed.
		height, err := p.net.BlockHeight(ctx)
		if err != nil {
			if err := failed(err); err != nil {
				return err
			}
		} else {
			status, err := p.net.SignatureStatus(ctx, sig)
			if err != nil {
				if err := failed(err); err != nil {
					return err
				}
			} else {
				nerrors = 0
				ok, err := reached(sig, status, p.opts.Level)
				if err != nil {
					return err
				}
				if ok {
					return nil
				}
				if lastValid != 0 && height > lastValid {
					return fmt.Errorf("transaction %s not confirmed by block height %d: %w", sig, lastValid, ErrExpired)
				}
			}
		}

		ctxutil.Sleep(ctx, p.opts.PollInterval)
		if err := context.Cause(ctx); err != nil {
			return fmt.Errorf("%w: %w", action.ErrUnreachable, err)
		}
	}
}
