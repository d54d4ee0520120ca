// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/config"
	"github.com/bvk/volumebot/server"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Trade struct {
	cmdutil.DBFlags

	noRouteDelay   time.Duration
	noRouteLimit   int
	abandonNoRoute bool
}

func (c *Trade) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("trade", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.DurationVar(&c.noRouteDelay, "no-route-delay", 2*time.Second, "delay between swap builds when there is no route")
	fset.IntVar(&c.noRouteLimit, "no-route-limit", 0, "max number of swap builds when there is no route (0 means unlimited)")
	fset.BoolVar(&c.abandonNoRoute, "abandon-no-route", false, "when true, gives up immediately when there is no route")
	return "trade", fset, cli.CmdFunc(c.run)
}

func (c *Trade) Purpose() string {
	return "Buys and then sells the token once with the main wallet"
}

func (c *Trade) run(ctx context.Context, args []string) error {
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

	noRoute := action.RetryNoRoute(c.noRouteDelay, c.noRouteLimit)
	if c.abandonNoRoute {
		noRoute = action.Abandon
	}
	r, err := s.Trade(ctx, noRoute)
	if err != nil {
		return err
	}

	stdout := cli.Stdout(ctx)
	for _, step := range r.Trace {
		if step.Err != nil {
			fmt.Fprintf(stdout, "%s %s: %s (%v)\n", step.Phase, step.Action, step.Status, step.Err)
			continue
		}
		fmt.Fprintf(stdout, "%s %s: %s\n", step.Phase, step.Action, step.Status)
	}
	fmt.Fprintln(stdout, r.Summary())
	return nil
}
