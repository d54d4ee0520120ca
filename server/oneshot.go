// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/cycle"
	"github.com/bvk/volumebot/idgen"
	"github.com/bvk/volumebot/report"
)

// Trade runs one buy immediately followed by the sell for the main wallet.
func (s *Server) Trade(ctx context.Context, noRoute action.NoRoutePolicy) (*cycle.Report, error) {
	main := s.mainActor()
	balance, err := s.net.Balance(ctx, main.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("could not read main wallet balance: %w", err)
	}
	size, err := s.gate.Check(balance)
	if err != nil {
		return nil, fmt.Errorf("main wallet is not eligible to trade: %w", err)
	}

	keys := new(actor.Keyring)
	keys.Add(main)
	exec := action.NewExecutor(keys, s.factory, s.submitter, s.net, noRoute)
	orch, err := cycle.New(exec, &cycle.Options{Policy: cycle.Lockstep})
	if err != nil {
		return nil, err
	}

	asset := s.cfg.TokenMint
	ids := idgen.New(fmt.Sprintf("%s/trade/%d", asset, time.Now().UnixNano()), 0)
	pair := cycle.Pair{
		Buy: &action.Action{
			ID:     ids.NextID().String(),
			Actor:  main.PublicKey(),
			Asset:  asset,
			Amount: size,
			Kind:   action.Buy,
		},
		Sell: &action.Action{
			ID:    ids.NextID().String(),
			Actor: main.PublicKey(),
			Asset: asset,
			Kind:  action.Sell,
		},
	}
	return orch.RunRound(ctx, 0, []cycle.Pair{pair}), nil
}

// Fund moves the balance of an actor into a newly generated actor. Negative
// index selects the main wallet. Returns nil actor when the source balance is
// too small.
func (s *Server) Fund(ctx context.Context, index int) (*actor.Actor, error) {
	source := s.mainActor()
	if index >= 0 {
		actors, err := s.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		if index >= len(actors) {
			return nil, fmt.Errorf("actor %d: %w", index, os.ErrNotExist)
		}
		source = actors[index]
	}
	return s.funder.Propagate(ctx, source, nil)
}

// Export writes the balances report of all actors into a csv file.
func (s *Server) Export(ctx context.Context, fpath string, opts *report.Options) (int, error) {
	actors, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := report.Collect(ctx, s.net, actors, s.cfg.TokenMint, opts)
	if err != nil {
		return 0, err
	}
	if err := report.WriteFile(fpath, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
