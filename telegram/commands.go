// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/visvasity/cli"
)

type CmdFunc = cli.CmdFunc

type Command struct {
	Name    string
	Purpose string
	Handler CmdFunc
}

// parseCommand splits a bot command message into the command name and its
// arguments. Commands addressed to other bots, like "/status@otherbot", are
// rejected.
func parseCommand(botName, text string) (string, []string, error) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, os.ErrInvalid
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if cmd, target, ok := strings.Cut(name, "@"); ok {
		if !strings.EqualFold(target, botName) {
			return "", nil, os.ErrInvalid
		}
		name = cmd
	}
	if len(name) == 0 {
		return "", nil, os.ErrInvalid
	}
	return name, fields[1:], nil
}

func (c *Client) lookup(name string) (*Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd, ok := c.commandMap[name]
	return cmd, ok
}

// botCommands returns the command list in the form published to the bot's
// command menu.
func (c *Client) botCommands() *bot.SetMyCommandsParams {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cmds []models.BotCommand
	for name, cmd := range c.commandMap {
		cmds = append(cmds, models.BotCommand{
			Command:     name,
			Description: cmd.Purpose,
		})
	}
	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Command < cmds[j].Command
	})
	return &bot.SetMyCommandsParams{Commands: cmds}
}

func (c *Client) help(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)
	for _, cmd := range c.botCommands().Commands {
		fmt.Fprintf(stdout, "/%s - %s\n", cmd.Command, cmd.Description)
	}
	return nil
}

func (c *Client) uptime(ctx context.Context, _ []string) error {
	const day = 24 * time.Hour
	d := time.Since(c.start).Round(time.Second)
	if d < day {
		fmt.Fprintf(cli.Stdout(ctx), "%v", d)
		return nil
	}
	fmt.Fprintf(cli.Stdout(ctx), "%dd%v", d/day, d%day)
	return nil
}
