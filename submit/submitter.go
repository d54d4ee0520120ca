// Copyright (c) 2023 BVK Chaitanya

package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bvk/volumebot/action"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrExpired is returned when the payload's blockhash expired before the
// transaction was confirmed.
var ErrExpired = errors.New("blockhash expired")

// Network is the subset of the rpc client used for submission.
type Network interface {
	SendRaw(ctx context.Context, raw []byte) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error)
	BlockHeight(ctx context.Context) (uint64, error)
}

// Confirmer waits for a sent transaction to be confirmed. It returns nil on
// confirmation, an error matching action.ErrRejected when the network reports
// an execution error, and any other error when the outcome is unknown.
type Confirmer interface {
	Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error
}

// Submitter sends a signed payload exactly once and classifies the outcome.
// It never retries.
type Submitter struct {
	net Network

	confirmer Confirmer
}

// New creates a submitter. Confirmations are polled when confirmer is nil.
func New(net Network, confirmer Confirmer) *Submitter {
	if confirmer == nil {
		confirmer = NewPoller(net, nil)
	}
	return &Submitter{net: net, confirmer: confirmer}
}

func (s *Submitter) Submit(ctx context.Context, p *action.Payload) *action.Outcome {
	if p == nil || len(p.Raw) == 0 {
		return &action.Outcome{Status: action.Skipped, Err: fmt.Errorf("empty payload: %w", action.ErrNoRoute)}
	}

	sig, err := s.net.SendRaw(ctx, p.Raw)
	if err != nil {
		return &action.Outcome{
			Status: action.Indeterminate,
			Err:    fmt.Errorf("%w: %w", action.ErrUnreachable, err),
		}
	}

	if err := s.confirmer.Confirm(ctx, sig, p.LastValidBlockHeight); err != nil {
		if errors.Is(err, action.ErrRejected) {
			return &action.Outcome{Status: action.Failed, Signature: sig, Err: err}
		}
		slog.WarnContext(ctx, "transaction outcome is unknown", "signature", sig, "err", err)
		if !errors.Is(err, action.ErrUnreachable) {
			err = fmt.Errorf("%w: %w", action.ErrUnreachable, err)
		}
		return &action.Outcome{Status: action.Indeterminate, Signature: sig, Err: err}
	}
	return &action.Outcome{Status: action.Confirmed, Signature: sig}
}

var statusRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

// reached reports whether the status satisfies the target level. A failed
// transaction returns an error matching action.ErrRejected.
func reached(sig solana.Signature, status *rpc.SignatureStatusesResult, target rpc.ConfirmationStatusType) (bool, error) {
	if status == nil {
		return false, nil
	}
	if status.Err != nil {
		return false, &action.TxError{Signature: sig, Payload: status.Err}
	}
	return statusRank[status.ConfirmationStatus] >= statusRank[target], nil
}
