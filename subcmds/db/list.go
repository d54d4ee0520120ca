// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/template"

	"github.com/bvk/volumebot/gobs"
	"github.com/bvk/volumebot/kvutil"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.DBFlags

	dir string

	keyRe string

	valueType string

	printTemplate string
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.dir, "dir", "/", "lists only the keys under this directory (ex: /actors)")
	fset.StringVar(&c.keyRe, "key-regexp", "", "regular expression to pick keys")
	fset.StringVar(&c.valueType, "value-type", "", "gob type name for the values (ex: ActorKey, DriverState)")
	fset.StringVar(&c.printTemplate, "print-template", "", "text/template to print the value")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints keys and values in the database"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	var keyRe *regexp.Regexp
	if len(c.keyRe) != 0 {
		re, err := regexp.Compile(c.keyRe)
		if err != nil {
			return fmt.Errorf("could not compile key-regexp value: %w", err)
		}
		keyRe = re
	}
	if len(c.valueType) != 0 {
		if _, err := gobs.NewByTypename(c.valueType); err != nil {
			return fmt.Errorf("invalid value-type %q: %w", c.valueType, err)
		}
	}
	var tmpl *template.Template
	if len(c.printTemplate) != 0 {
		if len(c.valueType) == 0 {
			return fmt.Errorf("print-template requires a value-type")
		}
		t, err := template.New("print").Parse(c.printTemplate)
		if err != nil {
			return fmt.Errorf("could not parse print-template: %w", err)
		}
		tmpl = t
	}

	stdout := cli.Stdout(ctx)
	printItem := func(key string, r io.Reader) error {
		if keyRe != nil && !keyRe.MatchString(key) {
			return nil
		}
		if len(c.valueType) == 0 {
			fmt.Fprintln(stdout, key)
			return nil
		}
		value, _ := gobs.NewByTypename(c.valueType)
		if err := gob.NewDecoder(r).Decode(value); err != nil {
			return fmt.Errorf("could not gob-decode value for key %q: %w", key, err)
		}
		if tmpl == nil {
			data, _ := json.Marshal(value)
			fmt.Fprintf(stdout, "%s %s\n", key, data)
			return nil
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, value); err != nil {
			return fmt.Errorf("could not execute print template against value at key %q: %w", key, err)
		}
		fmt.Fprintf(stdout, "%s %s\n", key, sb.String())
		return nil
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	begin, end := kvutil.PathRange(c.dir)
	return kv.WithReader(ctx, db, func(ctx context.Context, r kv.Reader) error {
		return kvutil.Walk(ctx, r, begin, end, printItem)
	})
}
