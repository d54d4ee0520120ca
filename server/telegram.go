// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"

	"github.com/bvk/volumebot/alerts"
	"github.com/visvasity/cli"
)

func (s *Server) addTelegramCommands(ctx context.Context) error {
	if err := s.telegramClient.AddCommand(ctx, "status", "Prints volumebot status", s.statusTelegramCmd); err != nil {
		return fmt.Errorf("could not add status command: %w", err)
	}
	if err := s.telegramClient.AddCommand(ctx, "balances", "Prints balances of all actors", s.balancesTelegramCmd); err != nil {
		return fmt.Errorf("could not add balances command: %w", err)
	}
	return nil
}

func (s *Server) statusTelegramCmd(ctx context.Context, _ []string) error {
	status, err := s.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(cli.Stdout(ctx), status.String())
	return nil
}

func (s *Server) balancesTelegramCmd(ctx context.Context, _ []string) error {
	actors, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	for _, a := range actors {
		balance, err := s.net.Balance(ctx, a.PublicKey())
		if err != nil {
			fmt.Fprintf(stdout, "%d: %s: %v\n", a.Index, a, err)
			continue
		}
		fmt.Fprintf(stdout, "%d: %s: %s SOL\n", a.Index, a, alerts.Lamports(balance))
	}
	return nil
}
