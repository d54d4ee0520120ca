// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/volumebot/kvutil"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Backup struct {
	cmdutil.DBFlags
}

func (c *Backup) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("backup", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "backup", fset, cli.CmdFunc(c.run)
}

func (c *Backup) Purpose() string {
	return "Saves all key-value pairs of the database into a backup file"
}

func (c *Backup) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("command takes one (output backup file) argument")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return fmt.Errorf("could not get database instance: %w", err)
	}
	defer closer()

	if err := kvutil.BackupDB(ctx, db, args[0]); err != nil {
		return fmt.Errorf("could not backup the database: %w", err)
	}
	return nil
}
