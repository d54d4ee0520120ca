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

type ExportJSON struct {
	cmdutil.DBFlags
}

func (c *ExportJSON) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("export-json", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "export-json", fset, cli.CmdFunc(c.run)
}

func (c *ExportJSON) Purpose() string {
	return "Writes secret keys of all actors in the wallets.json format"
}

func (c *ExportJSON) run(ctx context.Context, args []string) (status error) {
	if len(args) > 1 {
		return fmt.Errorf("command takes at most one (output file) argument")
	}
	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	store := actor.NewStore(db)
	if len(args) == 0 {
		return store.ExportJSON(ctx, cli.Stdout(ctx))
	}

	fp, err := os.OpenFile(args[0], os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if err := fp.Close(); err != nil && status == nil {
			status = err
		}
	}()
	return store.ExportJSON(ctx, fp)
}
