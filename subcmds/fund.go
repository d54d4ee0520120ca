// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/volumebot/config"
	"github.com/bvk/volumebot/server"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Fund struct {
	cmdutil.DBFlags

	from int
}

func (c *Fund) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("fund", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.IntVar(&c.from, "from", -1, "index of the source actor; negative value selects the main wallet")
	return "fund", fset, cli.CmdFunc(c.run)
}

func (c *Fund) Purpose() string {
	return "Moves the balance of an actor into a newly generated actor"
}

func (c *Fund) Description() string {
	return `

Command "fund" transfers the balance of the source wallet, minus the fee
reserve, into a newly generated actor which is saved in the database before
the transfer. A failed transfer is retried with the same target actor, even
across restarts.

`
}

func (c *Fund) run(ctx context.Context, args []string) error {
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

	target, err := s.Fund(ctx, c.from)
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	if target == nil {
		fmt.Fprintln(stdout, "source balance is too small to fund a new actor")
		return nil
	}
	fmt.Fprintf(stdout, "funded actor %d: %s\n", target.Index, target)
	return nil
}
