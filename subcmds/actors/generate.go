// Copyright (c) 2023 BVK Chaitanya

package actors

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Generate struct {
	cmdutil.DBFlags

	count int
}

func (c *Generate) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("generate", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.IntVar(&c.count, "count", 1, "number of actors to generate")
	return "generate", fset, cli.CmdFunc(c.run)
}

func (c *Generate) Purpose() string {
	return "Creates new actors with random keys"
}

func (c *Generate) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if c.count <= 0 {
		return fmt.Errorf("count must be positive: %w", os.ErrInvalid)
	}
	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	store := actor.NewStore(db)
	stdout := cli.Stdout(ctx)
	for i := 0; i < c.count; i++ {
		a, err := store.Generate(ctx, "generate")
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d: %s\n", a.Index, a)
	}
	return nil
}
