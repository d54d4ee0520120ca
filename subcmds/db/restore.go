// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Restore struct {
	cmdutil.DBFlags
}

func (c *Restore) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("restore", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "restore", fset, cli.CmdFunc(c.run)
}

func (c *Restore) Purpose() string {
	return "Replaces the database content with a backup file"
}

func (c *Restore) Description() string {
	return `

Command "restore" deletes all keys in the database and loads the key-value
pairs from a backup file created by the "backup" command. Both steps run in a
single transaction, so a failed restore leaves the database unchanged.

Daemon must be stopped to restore its on-disk database with the -data-dir
flag; otherwise the restore goes through the daemon's db api. Use the
-backup-before flag to keep a copy of the replaced content.

`
}

func (c *Restore) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("command takes one (input backup file) argument")
	}

	fp, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("could not open file %q: %w", args[0], err)
	}
	defer fp.Close()

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return fmt.Errorf("could not get database instance: %w", err)
	}
	defer closer()

	if err := cmdutil.Restore(ctx, bufio.NewReader(fp), db); err != nil {
		return fmt.Errorf("could not restore from %q: %w", args[0], err)
	}
	return nil
}
