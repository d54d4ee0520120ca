// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/bvk/volumebot/config"
	"github.com/bvk/volumebot/pushover"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type PushOver struct {
	dataDir     string
	skipTesting bool

	appID  string
	userID string
}

func (c *PushOver) Purpose() string {
	return "Setup configures PushOver service API parameters"
}

func (c *PushOver) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("pushover", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.userID, "user-id", "", "PushOver service user identifier")
	fset.StringVar(&c.appID, "app-id", "", "PushOver service Application identifier")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return "pushover", fset, cli.CmdFunc(c.run)
}

func (c *PushOver) Description() string {
	return `

Command "pushover" helps users configure round failure and low balance
notifications through the Pushover service.

Pushover keys are optional. They are only required to receive notifications to
the mobile phones. They can be configured as follows:

  $ volumebot setup pushover --app-id=awja5ue...ito7svf --user-id=uscjs2...tvp4kv

`
}

// loadSecrets returns the secrets in the data directory or an empty secrets
// object when the file doesn't exist.
func loadSecrets(dir string) (string, *config.Secrets, error) {
	dataDir, err := cmdutil.DataDir(dir)
	if err != nil {
		return "", nil, err
	}
	secretsPath := cmdutil.SecretsPath(dataDir)
	secrets, err := config.SecretsFromFile(secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, err
		}
		secrets = new(config.Secrets)
	}
	return secretsPath, secrets, nil
}

func (c *PushOver) run(ctx context.Context, args []string) error {
	secretsPath, secrets, err := loadSecrets(c.dataDir)
	if err != nil {
		return err
	}

	secrets.Pushover = &pushover.Keys{
		ApplicationKey: c.appID,
		UserKey:        c.userID,
	}
	if err := secrets.Check(); err != nil {
		return err
	}

	if !c.skipTesting {
		client, err := pushover.New(secrets.Pushover)
		if err != nil {
			return err
		}
		if err := client.SendMessage(ctx, time.Now(), "Test message from volumebot Pushover setup; please ignore."); err != nil {
			return err
		}
	}
	return secrets.WriteFile(secretsPath)
}
