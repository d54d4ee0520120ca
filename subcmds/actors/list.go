// Copyright (c) 2023 BVK Chaitanya

package actors

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.DBFlags
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints public keys of all actors in the trading order"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	actors, err := actor.NewStore(db).Load(ctx)
	if err != nil {
		return err
	}
	if len(actors) == 0 {
		return fmt.Errorf("no actors: %w", os.ErrNotExist)
	}

	tw := tabwriter.NewWriter(cli.Stdout(ctx), 4, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "Index\tPublicKey\t\n")
	for _, a := range actors {
		fmt.Fprintf(tw, "%d\t%s\t\n", a.Index, a)
	}
	return tw.Flush()
}
