// Copyright (c) 2025 BVK Chaitanya

package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bvk/volumebot/driver"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

// Notifier delivers a text message to the operators.
type Notifier interface {
	SendMessage(ctx context.Context, at time.Time, msg string) error
}

type Network interface {
	Balance(ctx context.Context, pub solana.PublicKey) (uint64, error)
}

type Options struct {
	// EveryRound sends the summary of every round instead of only the rounds
	// with failures.
	EveryRound bool

	// Funder is the main wallet checked for a low balance after every round.
	Funder solana.PublicKey

	// LowBalance is the funder balance in lamports at or below which an alert
	// is sent.
	LowBalance uint64

	// Freeze is the minimum interval between two alerts of the same kind.
	Freeze time.Duration
}

func (v *Options) setDefaults() {
	if v.Freeze == 0 {
		v.Freeze = time.Hour
	}
}

func (v *Options) Check() error {
	if v.LowBalance > 0 && v.Funder.IsZero() {
		return fmt.Errorf("low balance alert needs a funder wallet: %w", os.ErrInvalid)
	}
	return nil
}

type Alerter struct {
	opts Options

	net Network

	notifiers []Notifier

	freezeDeadlineMap map[string]time.Time
}

func New(net Network, opts *Options, notifiers ...Notifier) (*Alerter, error) {
	if opts == nil {
		opts = new(Options)
	}
	a := &Alerter{
		opts:              *opts,
		net:               net,
		notifiers:         notifiers,
		freezeDeadlineMap: make(map[string]time.Time),
	}
	a.opts.setDefaults()
	if err := a.opts.Check(); err != nil {
		return nil, err
	}
	return a, nil
}

// Watch handles every round delivered to the receiver till the context is
// canceled. The receiver is closed on return. Callers subscribe before the
// publisher starts so that no round is missed.
func (a *Alerter) Watch(ctx context.Context, receiver *topic.Receiver[*driver.Round]) error {
	defer receiver.Close()

	ch, err := topic.ReceiveCh(receiver)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case r, ok := <-ch:
			if !ok {
				return os.ErrClosed
			}
			a.OnRound(ctx, r)
		}
	}
}

func (a *Alerter) OnRound(ctx context.Context, r *driver.Round) {
	failed := r.Buys.Failed + r.Sells.Failed + r.FundingErrors
	if a.opts.EveryRound || failed > 0 {
		var sb strings.Builder
		sb.WriteString(r.Summary())
		if len(r.Funded) > 0 {
			fmt.Fprintf(&sb, "; funded %d new actors", len(r.Funded))
		}
		if r.FundingErrors > 0 {
			fmt.Fprintf(&sb, "; %d funding errors", r.FundingErrors)
		}
		a.send(ctx, r.End, sb.String())
	}

	if a.opts.LowBalance > 0 {
		if err := a.checkLowBalance(ctx); err != nil {
			slog.WarnContext(ctx, "could not check funder balance", "funder", a.opts.Funder, "err", err)
		}
	}
}

func (a *Alerter) checkLowBalance(ctx context.Context) error {
	now := time.Now()
	key := "low-balance/" + a.opts.Funder.String()
	if deadline, ok := a.freezeDeadlineMap[key]; ok {
		if now.Before(deadline) {
			return nil
		}
		delete(a.freezeDeadlineMap, key)
	}

	balance, err := a.net.Balance(ctx, a.opts.Funder)
	if err != nil {
		return err
	}
	if balance > a.opts.LowBalance {
		return nil
	}
	a.send(ctx, now, fmt.Sprintf("Funder %s balance %s SOL is at or below the limit %s SOL.",
		a.opts.Funder, Lamports(balance).StringFixed(4), Lamports(a.opts.LowBalance).StringFixed(4)))
	a.freezeDeadlineMap[key] = now.Add(a.opts.Freeze)
	return nil
}

func (a *Alerter) send(ctx context.Context, at time.Time, msg string) {
	for _, n := range a.notifiers {
		if err := n.SendMessage(ctx, at, msg); err != nil {
			slog.WarnContext(ctx, "could not send notification (ignored)", "err", err)
		}
	}
}

// Lamports converts a lamports amount into SOL.
func Lamports(v uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(v)).Shift(-9)
}
