// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/go-telegram/bot/models"
	"github.com/visvasity/cli"
)

func TestParseCommand(t *testing.T) {
	type testCase struct {
		text string
		name string
		args []string
	}
	cases := []testCase{
		{"/status", "status", nil},
		{"/balances  1 2", "balances", []string{"1", "2"}},
		{"/status@VolumeBot now", "status", []string{"now"}},
		{"/status@volumebot", "status", nil},
	}
	for _, c := range cases {
		name, args, err := parseCommand("volumebot", c.text)
		if err != nil {
			t.Fatalf("%q: %v", c.text, err)
		}
		if name != c.name || !slices.Equal(args, c.args) {
			t.Fatalf("%q: want %s%v, got %s%v", c.text, c.name, c.args, name, args)
		}
	}

	for _, text := range []string{"", "status", "/", "/ status", "/status@otherbot", "/@volumebot"} {
		if _, _, err := parseCommand("volumebot", text); !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("%q: want invalid, got %v", text, err)
		}
	}
}

func TestCredentials(t *testing.T) {
	valid := &Credentials{Token: "1:A", Owner: "alice", Others: []string{"bob"}}
	if err := valid.Check(); err != nil {
		t.Fatal(err)
	}
	if users := valid.users(); !slices.Equal(users, []string{"alice", "bob"}) {
		t.Fatalf("unexpected users %v", users)
	}

	invalid := []*Credentials{
		{Owner: "alice"},
		{Token: "1:A"},
		{Token: "1:A", Owner: "alice", Others: []string{""}},
		{Token: "1:A", Owner: "alice", Others: []string{"alice"}},
	}
	for _, v := range invalid {
		if err := v.Check(); err == nil {
			t.Fatalf("%#v must be invalid", v)
		}
	}
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()
	c := &Client{
		start:      time.Now(),
		creds:      &Credentials{Token: "1:A", Owner: "alice"},
		self:       &models.User{Username: "volumebot"},
		commandMap: make(map[string]*Command),
	}
	c.commandMap["help"] = &Command{Name: "help", Purpose: "Lists the bot commands", Handler: c.help}
	c.commandMap["echo"] = &Command{Name: "echo", Purpose: "Echoes the arguments", Handler: func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("nothing to echo")
		}
		fmt.Fprint(cli.Stdout(ctx), strings.Join(args, " "))
		return nil
	}}

	if reply := c.run(ctx, "alice", "/echo hello world"); reply != "hello world" {
		t.Fatalf("unexpected echo reply %q", reply)
	}
	if reply := c.run(ctx, "alice", "/echo"); reply != "nothing to echo" {
		t.Fatalf("want handler error as reply, got %q", reply)
	}
	if reply := c.run(ctx, "alice", "/help"); !strings.Contains(reply, "/echo - Echoes the arguments") {
		t.Fatalf("help must list all commands, got %q", reply)
	}
	if reply := c.run(ctx, "alice", "/missing"); !strings.Contains(reply, "unknown command") {
		t.Fatalf("unexpected reply for unknown command %q", reply)
	}
	if reply := c.run(ctx, "alice", "hello"); reply != "" {
		t.Fatalf("plain messages must not be answered, got %q", reply)
	}
}

func TestChatIDs(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	state, err := loadState(ctx, db, "volumebot")
	if err != nil {
		t.Fatal(err)
	}
	c := &Client{
		db:    db,
		creds: &Credentials{Token: "1:A", Owner: "alice", Others: []string{"bob"}},
		self:  &models.User{Username: "volumebot"},
		state: state,
	}
	if err := c.rememberChat(ctx, "bob", 42); err != nil {
		t.Fatal(err)
	}
	if ids := c.chatIDs(ctx); !slices.Equal(ids, []int64{42}) {
		t.Fatalf("want chat id of bob only, got %v", ids)
	}

	saved, err := loadState(ctx, db, "volumebot")
	if err != nil {
		t.Fatal(err)
	}
	if saved.ChatIDs["bob"] != 42 {
		t.Fatalf("chat id must be persisted, got %v", saved.ChatIDs)
	}
}

// TestClient talks to the real bot when credentials are available in the
// telegram-creds.json file.
func TestClient(t *testing.T) {
	data, err := os.ReadFile("telegram-creds.json")
	if err != nil {
		t.Skip("no credentials")
	}
	creds := new(Credentials)
	if err := json.Unmarshal(data, creds); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	c, err := New(ctx, kvmemdb.New(), creds)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}()

	t.Logf("authorized on account %s with owner %s", c.BotUserName(), c.OwnerUserName())
	if err := c.SendMessage(ctx, time.Now(), "hello"); err != nil {
		t.Fatal(err)
	}
}
