// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/volumebot/idgen"
	"github.com/visvasity/cli"
)

type IDGen struct {
	from  uint64
	count int
	round uint64
}

func (c *IDGen) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (idgen seed or token mint) argument")
	}
	gen := idgen.New(args[0], c.from)
	if c.round != 0 {
		gen = idgen.ForRound(args[0], c.round)
	}
	stdout := cli.Stdout(ctx)
	for i := 0; i < c.count; i++ {
		offset, id := gen.Offset(), gen.NextID()
		fmt.Fprintf(stdout, "%d: %s\n", offset, id)
	}
	return nil
}

func (c *IDGen) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("idgen", flag.ContinueOnError)
	fset.Uint64Var(&c.from, "from", 0, "initial id offset")
	fset.IntVar(&c.count, "count", 10, "number of uuids")
	fset.Uint64Var(&c.round, "round", 0, "when non-zero, prints the action ids of this round for the token mint argument")
	return "idgen", fset, cli.CmdFunc(c.run)
}

func (c *IDGen) Purpose() string {
	return "Prints action ids for a seed string or a trading round"
}
