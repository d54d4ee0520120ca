// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/volumebot/config"
	"github.com/bvk/volumebot/report"
	"github.com/bvk/volumebot/server"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Export struct {
	cmdutil.DBFlags

	output string
	pause  time.Duration
}

func (c *Export) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("export", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.output, "output", "wallets.csv", "path to the csv file")
	fset.DurationVar(&c.pause, "pause", 500*time.Millisecond, "delay between the balance reads of two actors")
	return "export", fset, cli.CmdFunc(c.run)
}

func (c *Export) Purpose() string {
	return "Writes keys and balances of all actors into a csv file"
}

func (c *Export) Description() string {
	return `

Command "export" writes one row per actor with the columns
publicKey,privateKey,balance,amount where balance is the native balance in SOL
and amount is the token balance. Existing output file is replaced.

The output contains private keys. Keep it safe.

`
}

func (c *Export) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	s, err := server.New(ctx, db, cfg, nil /* secrets */)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Export(ctx, c.output, &report.Options{Pause: c.pause})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout(ctx), "exported %d actors into %s\n", n, c.output)
	return nil
}
