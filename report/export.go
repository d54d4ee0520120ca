// Copyright (c) 2023 BVK Chaitanya

package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/ctxutil"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

type Network interface {
	Balance(ctx context.Context, pub solana.PublicKey) (uint64, error)
	TokenAmount(ctx context.Context, owner, mint solana.PublicKey) (*rpc.UiTokenAmount, error)
}

type Options struct {
	// Pause between the balance reads of two actors.
	Pause time.Duration

	// Attempts is the number of tries for every balance read.
	Attempts int

	RetryInterval time.Duration
}

func (v *Options) setDefaults() {
	if v.Pause == 0 {
		v.Pause = 500 * time.Millisecond
	}
	if v.Attempts == 0 {
		v.Attempts = 3
	}
	if v.RetryInterval == 0 {
		v.RetryInterval = time.Second
	}
}

// Row is one exported actor with its native balance in SOL and its asset
// amount in token units.
type Row struct {
	PublicKey  string
	PrivateKey string

	Balance decimal.Decimal
	Amount  decimal.Decimal
}

var header = []string{"publicKey", "privateKey", "balance", "amount"}

// Collect reads the current balances of all actors.
func Collect(ctx context.Context, net Network, actors []*actor.Actor, mint solana.PublicKey, opts *Options) ([]*Row, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()

	var rows []*Row
	for i, a := range actors {
		if i > 0 {
			if err := ctxutil.Backoff(ctx, opts.Pause); err != nil {
				return nil, err
			}
		}

		var lamports uint64
		err := ctxutil.Retry(ctx, opts.RetryInterval, opts.Attempts, func() (err error) {
			lamports, err = net.Balance(ctx, a.PublicKey())
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("could not read balance of %s: %w", a, err)
		}

		var amount *rpc.UiTokenAmount
		err = ctxutil.Retry(ctx, opts.RetryInterval, opts.Attempts, func() (err error) {
			amount, err = net.TokenAmount(ctx, a.PublicKey(), mint)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("could not read asset amount of %s: %w", a, err)
		}
		units, err := decimal.NewFromString(amount.UiAmountString)
		if err != nil {
			slog.WarnContext(ctx, "could not parse asset amount (using zero)", "actor", a, "amount", amount.UiAmountString, "err", err)
			units = decimal.Zero
		}

		rows = append(rows, &Row{
			PublicKey:  a.PublicKey().String(),
			PrivateKey: a.Key.String(),
			Balance:    decimal.NewFromInt(int64(lamports)).Shift(-9),
			Amount:     units,
		})
	}
	return rows, nil
}

func WriteCSV(w io.Writer, rows []*Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.PublicKey, r.PrivateKey, r.Balance.String(), r.Amount.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces the file at fpath with the csv export. The file is
// readable only by the owner since it holds secret keys.
func WriteFile(fpath string, rows []*Row) (status error) {
	fp, err := os.CreateTemp(filepath.Dir(fpath), filepath.Base(fpath)+".tmp*")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}
	defer func() {
		if status != nil {
			fp.Close()
			os.Remove(fp.Name())
		}
	}()

	if err := WriteCSV(fp, rows); err != nil {
		return fmt.Errorf("could not write csv: %w", err)
	}
	if err := fp.Close(); err != nil {
		return err
	}
	if err := os.Rename(fp.Name(), fpath); err != nil {
		return fmt.Errorf("could not replace %q: %w", fpath, err)
	}
	return nil
}
