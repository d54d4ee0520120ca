// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/bvk/volumebot/server"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Status struct {
	cmdutil.ClientFlags

	jsonFormat bool
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.BoolVar(&c.jsonFormat, "json", false, "prints the status in json format")
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) Purpose() string {
	return "Prints the status of the running volumebot service"
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	status, err := cmdutil.Get[server.Status](ctx, &c.ClientFlags, "/status")
	if err != nil {
		return fmt.Errorf("could not fetch status: %w", err)
	}
	stdout := cli.Stdout(ctx)
	if c.jsonFormat {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n", data)
		return nil
	}
	fmt.Fprintln(stdout, status.String())
	return nil
}
