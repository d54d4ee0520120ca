// Copyright (c) 2023 BVK Chaitanya

package actors

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/gagliardetto/solana-go"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type Import struct {
	cmdutil.DBFlags

	stdin bool
}

func (c *Import) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("import", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.BoolVar(&c.stdin, "stdin", false, "reads a single base58 secret key from the standard input")
	return "import", fset, cli.CmdFunc(c.run)
}

func (c *Import) Purpose() string {
	return "Adds actors from a wallets.json file or a secret key"
}

func (c *Import) Description() string {
	return `

Command "import" appends the keys from a JSON file with an array of base58
secret keys (the wallets.json format) to the actors. Keys that are already
present are ignored.

With the -stdin flag a single secret key is read from the standard input. The
key is not echoed when the input is a terminal.

  $ volumebot actors import wallets.json
  $ volumebot actors import -stdin

`
}

func readSecretKey() (solana.PrivateKey, error) {
	fd := int(os.Stdin.Fd())
	var secret string
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Secret key: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("could not read secret key: %w", err)
		}
		secret = string(data)
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && len(line) == 0 {
			return nil, fmt.Errorf("could not read secret key: %w", err)
		}
		secret = line
	}
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("could not decode secret key: %w", err)
	}
	return key, nil
}

func (c *Import) run(ctx context.Context, args []string) error {
	if c.stdin == (len(args) != 0) {
		return fmt.Errorf("command takes either one (wallets json file) argument or the -stdin flag")
	}

	var key solana.PrivateKey
	if c.stdin {
		k, err := readSecretKey()
		if err != nil {
			return err
		}
		key = k
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	store := actor.NewStore(db)
	stdout := cli.Stdout(ctx)
	if c.stdin {
		a, err := store.Append(ctx, key, "import")
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d: %s\n", a.Index, a)
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("command takes one (wallets json file) argument")
	}
	fp, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer fp.Close()

	n, err := store.ImportJSON(ctx, fp)
	if err != nil {
		return fmt.Errorf("could not import from %q (%d keys added): %w", args[0], n, err)
	}
	fmt.Fprintf(stdout, "added %d new actors\n", n)
	return nil
}
