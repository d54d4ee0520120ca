// Copyright (c) 2025 BVK Chaitanya

// Package telegram delivers volumebot notifications through a Telegram bot
// and runs bot commands sent by the authorized users.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bvk/volumebot/ctxutil"
	"github.com/bvk/volumebot/gobs"
	"github.com/bvkgo/kv"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/visvasity/cli"
)

type Client struct {
	group ctxutil.Group

	db    kv.Database
	creds *Credentials
	start time.Time

	bot  *bot.Bot
	self *models.User

	mu         sync.Mutex
	state      *gobs.TelegramState
	commandMap map[string]*Command
}

// New connects to the bot and starts receiving the bot updates in the
// background. Chat ids of the users are saved in the database.
func New(ctx context.Context, db kv.Database, creds *Credentials) (_ *Client, status error) {
	if err := creds.Check(); err != nil {
		return nil, err
	}

	c := &Client{
		db:         db,
		start:      time.Now(),
		commandMap: make(map[string]*Command),
	}
	c.creds = &Credentials{Token: creds.Token, Owner: creds.Owner, Others: slices.Clone(creds.Others)}

	b, err := bot.New(creds.Token, bot.WithDefaultHandler(c.handler))
	if err != nil {
		return nil, fmt.Errorf("could not create telegram bot: %w", err)
	}
	defer func() {
		if status != nil {
			b.Close(ctx)
		}
	}()
	c.bot = b

	self, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get telegram bot user: %w", err)
	}
	c.self = self

	state, err := loadState(ctx, db, self.Username)
	if err != nil {
		return nil, fmt.Errorf("could not load telegram state: %w", err)
	}
	c.state = state

	c.commandMap["help"] = &Command{Name: "help", Purpose: "Lists the bot commands", Handler: c.help}
	c.commandMap["uptime"] = &Command{Name: "uptime", Purpose: "Prints volumebot uptime", Handler: c.uptime}
	if err := c.publishCommands(ctx); err != nil {
		return nil, err
	}

	c.group.Go(func(ctx context.Context) error {
		b.Start(ctx)
		return nil
	})
	return c, nil
}

func (c *Client) Close() error {
	return c.group.Close()
}

func (c *Client) BotUserName() string {
	return c.self.Username
}

func (c *Client) OwnerUserName() string {
	return c.creds.Owner
}

func (c *Client) publishCommands(ctx context.Context) error {
	if ok, err := c.bot.SetMyCommands(ctx, c.botCommands()); err != nil {
		return fmt.Errorf("could not set bot commands: %w", err)
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}
	return nil
}

// AddCommand registers a bot command. Handler output written to the
// cli.Stdout is sent as the reply.
func (c *Client) AddCommand(ctx context.Context, name, purpose string, handler CmdFunc) error {
	if len(name) == 0 || len(purpose) == 0 || handler == nil {
		return os.ErrInvalid
	}

	c.mu.Lock()
	if _, ok := c.commandMap[name]; ok {
		c.mu.Unlock()
		return os.ErrExist
	}
	c.commandMap[name] = &Command{Name: name, Purpose: purpose, Handler: handler}
	c.mu.Unlock()

	return c.publishCommands(ctx)
}

// SendMessage sends the message to all users who have a chat with the
// bot. Delivery failures are logged and ignored.
func (c *Client) SendMessage(ctx context.Context, at time.Time, text string) error {
	msg := at.Format("2006-01-02 15:04:05 MST") + " " + text
	for _, id := range c.chatIDs(ctx) {
		if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: id, Text: msg}); err != nil {
			slog.ErrorContext(ctx, "could not send telegram message (ignored)", "chat-id", id, "err", err)
		}
	}
	return nil
}

func (c *Client) isAuthorized(user string) bool {
	return slices.Contains(c.creds.users(), user)
}

func (c *Client) handler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message

	sender := msg.From.Username
	if !c.isAuthorized(sender) {
		slog.WarnContext(ctx, "ignoring telegram message from unauthorized user", "sender", sender)
		return
	}

	c.mu.Lock()
	err := c.rememberChat(ctx, sender, msg.Chat.ID)
	c.mu.Unlock()
	if err != nil {
		slog.WarnContext(ctx, "could not save telegram chat id (ignored)", "user", sender, "err", err)
	}

	reply := c.run(ctx, sender, msg.Text)
	if len(reply) == 0 {
		return
	}
	disabled := true
	p := &bot.SendMessageParams{
		ChatID:             msg.Chat.ID,
		Text:               reply,
		ReplyParameters:    &models.ReplyParameters{MessageID: msg.ID},
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	}
	if _, err := c.bot.SendMessage(ctx, p); err != nil {
		slog.ErrorContext(ctx, "could not reply to telegram command (ignored)", "user", sender, "err", err)
	}
}

// run executes a command message and returns the reply text.
func (c *Client) run(ctx context.Context, sender, text string) string {
	name, args, err := parseCommand(c.BotUserName(), text)
	if err != nil {
		return ""
	}
	cmd, ok := c.lookup(name)
	if !ok {
		return fmt.Sprintf("unknown command %q; try /help", name)
	}

	var sb strings.Builder
	if err := cmd.Handler(cli.WithStdout(ctx, &sb), args); err != nil {
		slog.ErrorContext(ctx, "telegram command has failed", "cmd", name, "user", sender, "err", err)
		return err.Error()
	}
	return sb.String()
}
