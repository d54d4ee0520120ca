// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"

	"github.com/bvk/volumebot/gobs"
	"github.com/bvk/volumebot/kvutil"
	"github.com/bvkgo/kv"
)

func stateKey(botName string) string {
	return path.Join("/telegram", botName, "state")
}

func loadState(ctx context.Context, db kv.Database, botName string) (*gobs.TelegramState, error) {
	state, err := kvutil.GetDB[gobs.TelegramState](ctx, db, stateKey(botName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		state = new(gobs.TelegramState)
	}
	if state.ChatIDs == nil {
		state.ChatIDs = make(map[string]int64)
	}
	return state, nil
}

// rememberChat records the chat id of an authorized user, so that
// notifications can be delivered to them. Caller must hold the lock.
func (c *Client) rememberChat(ctx context.Context, user string, chatID int64) error {
	if id, ok := c.state.ChatIDs[user]; ok && id == chatID {
		return nil
	}
	c.state.ChatIDs[user] = chatID
	slog.InfoContext(ctx, "saving chat id of an authorized telegram user", "user", user, "chat-id", chatID)

	if err := kvutil.SetDB(ctx, c.db, stateKey(c.self.Username), c.state); err != nil {
		return err
	}
	return nil
}

// chatIDs returns the chat ids of all known users for the notifications.
func (c *Client) chatIDs(ctx context.Context) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []int64
	for _, user := range c.creds.users() {
		id, ok := c.state.ChatIDs[user]
		if !ok {
			slog.WarnContext(ctx, "telegram user has not started a chat with the bot", "user", user)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
