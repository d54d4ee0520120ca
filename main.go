// Copyright (c) 2023 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/volumebot/subcmds"
	"github.com/bvk/volumebot/subcmds/actors"
	"github.com/bvk/volumebot/subcmds/db"
	"github.com/bvk/volumebot/subcmds/setup"
	"github.com/visvasity/cli"
)

func main() {
	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	actorCmds := []cli.Command{
		new(actors.List),
		new(actors.Generate),
		new(actors.Import),
		new(actors.ExportJSON),
	}

	setupCmds := []cli.Command{
		new(setup.Telegram),
		new(setup.PushOver),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		new(subcmds.Trade),
		new(subcmds.Fund),
		new(subcmds.Export),
		new(subcmds.IDGen),
		cli.CommandGroup("actors", "Manage trading wallets", actorCmds...),
		cli.CommandGroup("db", "View/update database directly", dbCmds...),
		cli.CommandGroup("setup", "Configure notification services", setupCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
