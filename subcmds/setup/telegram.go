// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bvk/volumebot/ctxutil"
	"github.com/bvk/volumebot/telegram"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type Telegram struct {
	dataDir     string
	skipTesting bool

	owner    string
	others   string
	botToken string
}

func (c *Telegram) Purpose() string {
	return "Setup configures Telegram service API parameters"
}

func (c *Telegram) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("telegram", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.owner, "owner", "", "Owner's telegram user name")
	fset.StringVar(&c.others, "others", "", "Comma separated list of other telegram user names")
	fset.StringVar(&c.botToken, "bot-token", "", "Telegram bot's authentication token")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return "telegram", fset, cli.CmdFunc(c.run)
}

func (c *Telegram) Description() string {
	return `

Command "telegram" helps users receive round reports and low balance alerts
on their Telegram account through a Telegram bot. The bot also answers the
/status and /balances commands.

Telegram configuration is optional. It can be configured as follows:

  $ volumebot setup telegram --owner=username --bot-token=USCJS2...TVP4KV

`
}

func waitForKeypress() error {
	fmt.Println("Start a chat with telegram bot and then press any key")
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("could not switch terminal to raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	b := make([]byte, 1)
	if _, err := os.Stdin.Read(b); err != nil {
		return err
	}
	return nil
}

func (c *Telegram) run(ctx context.Context, args []string) error {
	secretsPath, secrets, err := loadSecrets(c.dataDir)
	if err != nil {
		return err
	}

	secrets.Telegram = &telegram.Credentials{
		Token: c.botToken,
		Owner: c.owner,
	}
	if len(c.others) != 0 {
		secrets.Telegram.Others = strings.Split(c.others, ",")
	}
	if err := secrets.Check(); err != nil {
		return err
	}

	if !c.skipTesting {
		if err := waitForKeypress(); err != nil {
			return err
		}
		client, err := telegram.New(ctx, kvmemdb.New(), secrets.Telegram)
		if err != nil {
			return err
		}
		defer client.Close()

		ctxutil.Sleep(ctx, time.Second)
		if err := client.SendMessage(ctx, time.Now(), "Test message from volumebot Telegram setup; please ignore."); err != nil {
			return err
		}
	}
	return secrets.WriteFile(secretsPath)
}
