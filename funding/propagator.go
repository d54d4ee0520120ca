// Copyright (c) 2023 BVK Chaitanya

package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/ctxutil"
	"github.com/bvk/volumebot/gobs"
	"github.com/bvk/volumebot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

const KeyPrefix = "/funding"

// Network is the subset of the rpc client used for funding transfers.
type Network interface {
	Balance(ctx context.Context, pub solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
}

// Propagator moves the native balance of an actor into a newly generated
// actor. The same target is used for every retry of a split, including retries
// after a restart.
type Propagator struct {
	opts Options

	db    kv.Database
	store *actor.Store

	net       Network
	submitter action.Submitter
}

func New(db kv.Database, store *actor.Store, net Network, submitter action.Submitter, opts *Options) (*Propagator, error) {
	if opts == nil {
		opts = new(Options)
	}
	p := &Propagator{
		opts:      *opts,
		db:        db,
		store:     store,
		net:       net,
		submitter: submitter,
	}
	p.opts.setDefaults()
	if err := p.opts.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

func splitKey(source solana.PublicKey) string {
	return path.Join(KeyPrefix, source.String())
}

// Propagate transfers the source balance minus the fee reserve to the target,
// generating and persisting a new target when none is given and no split is
// pending for the source. An explicit target is refused with os.ErrExist when a
// split to a different target is pending. Returns nil without error when the
// source balance is not above the funding threshold.
func (p *Propagator) Propagate(ctx context.Context, source, target *actor.Actor) (*actor.Actor, error) {
	for attempt := 1; ; attempt++ {
		balance, err := p.net.Balance(ctx, source.PublicKey())
		if err == nil {
			if balance <= p.opts.MinFunding {
				slog.InfoContext(ctx, "source balance is not above the funding threshold", "source", source, "balance", balance, "threshold", p.opts.MinFunding)
				return nil, nil
			}

			if target == nil {
				t, err := p.resolveTarget(ctx, source)
				if err != nil {
					return nil, err
				}
				target = t
			} else if err := p.recordSplit(ctx, source, target); err != nil {
				return nil, err
			}

			amount := balance - p.opts.FeeReserve
			out := p.transfer(ctx, source, target, amount)
			if out.OK() {
				slog.InfoContext(ctx, "funded new actor", "source", source, "target", target, "lamports", amount, "url", action.ExplorerURL(out.Signature))
				if err := p.clearSplit(ctx, source); err != nil {
					slog.WarnContext(ctx, "could not clear pending split (ignored)", "source", source, "err", err)
				}
				return target, nil
			}
			err = out.Err
			p.countAttempt(ctx, source)
		}

		if p.opts.MaxAttempts > 0 && attempt >= p.opts.MaxAttempts {
			return nil, fmt.Errorf("could not fund actor from %s after %d attempts: %w", source, attempt, err)
		}
		slog.WarnContext(ctx, "funding attempt failed (retrying)", "source", source, "target", target, "attempt", attempt, "err", err)
		if err := ctxutil.Backoff(ctx, p.opts.Backoff); err != nil {
			return nil, err
		}
	}
}

// Pending returns the target of the unfinished split from source, if any.
func (p *Propagator) Pending(ctx context.Context, source solana.PublicKey) (*gobs.FundingSplit, error) {
	split, err := kvutil.GetDB[gobs.FundingSplit](ctx, p.db, splitKey(source))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return split, nil
}

func (p *Propagator) resolveTarget(ctx context.Context, source *actor.Actor) (*actor.Actor, error) {
	split, err := p.Pending(ctx, source.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("could not load pending split: %w", err)
	}
	if split != nil {
		pub, err := solana.PublicKeyFromBase58(split.Target)
		if err != nil {
			return nil, fmt.Errorf("could not parse pending split target: %w", err)
		}
		target, err := p.store.Lookup(ctx, pub)
		if err != nil {
			return nil, fmt.Errorf("could not load pending split target %s: %w", pub, err)
		}
		slog.InfoContext(ctx, "resuming pending split", "source", source, "target", target)
		return target, nil
	}

	// Credential is persisted before any transfer is attempted.
	target, err := p.store.Generate(ctx, "funding")
	if err != nil {
		return nil, fmt.Errorf("could not create new actor: %w", err)
	}
	if err := p.recordSplit(ctx, source, target); err != nil {
		return nil, err
	}
	return target, nil
}

func (p *Propagator) recordSplit(ctx context.Context, source, target *actor.Actor) error {
	key := splitKey(source.PublicKey())
	return kv.WithReadWriter(ctx, p.db, func(ctx context.Context, rw kv.ReadWriter) error {
		old, err := kvutil.Get[gobs.FundingSplit](ctx, rw, key)
		if err == nil {
			if old.Target == target.String() {
				return nil
			}
			// An earlier transfer to the pending target may still land.
			return fmt.Errorf("split from %s to %s is pending: %w", source, old.Target, os.ErrExist)
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		split := &gobs.FundingSplit{
			Source:     source.String(),
			Target:     target.String(),
			CreateTime: time.Now(),
		}
		if err := kvutil.Set(ctx, rw, key, split); err != nil {
			return fmt.Errorf("could not save pending split: %w", err)
		}
		return nil
	})
}

func (p *Propagator) countAttempt(ctx context.Context, source *actor.Actor) {
	key := splitKey(source.PublicKey())
	err := kv.WithReadWriter(ctx, p.db, func(ctx context.Context, rw kv.ReadWriter) error {
		split, err := kvutil.Get[gobs.FundingSplit](ctx, rw, key)
		if err != nil {
			return err
		}
		split.Attempts++
		return kvutil.Set(ctx, rw, key, split)
	})
	if err != nil {
		slog.WarnContext(ctx, "could not update split attempts (ignored)", "source", source, "err", err)
	}
}

func (p *Propagator) clearSplit(ctx context.Context, source *actor.Actor) error {
	return kv.WithReadWriter(ctx, p.db, func(ctx context.Context, rw kv.ReadWriter) error {
		return rw.Delete(ctx, splitKey(source.PublicKey()))
	})
}

func (p *Propagator) transfer(ctx context.Context, source, target *actor.Actor, lamports uint64) *action.Outcome {
	hash, lastValid, err := p.net.LatestBlockhash(ctx)
	if err != nil {
		return &action.Outcome{Status: action.Skipped, Err: fmt.Errorf("%w: %w", action.ErrUnreachable, err)}
	}

	from, to := source.PublicKey(), target.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		hash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return &action.Outcome{Status: action.Skipped, Err: fmt.Errorf("could not create transfer transaction: %w", err)}
	}
	signer := func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(from) {
			return &source.Key
		}
		return nil
	}
	if _, err := tx.Sign(signer); err != nil {
		return &action.Outcome{Status: action.Skipped, Err: fmt.Errorf("could not sign transfer transaction: %w", err)}
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return &action.Outcome{Status: action.Skipped, Err: fmt.Errorf("could not encode transfer transaction: %w", err)}
	}

	payload := &action.Payload{
		Raw:                  raw,
		Blockhash:            hash,
		LastValidBlockHeight: lastValid,
	}
	return p.submitter.Submit(ctx, payload)
}
