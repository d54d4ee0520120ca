// Copyright (c) 2023 BVK Chaitanya

package gobs

import (
	"time"
)

type KeyValue struct {
	Key   string
	Value []byte
}

// ActorKey is the persisted credential of an actor.
type ActorKey struct {
	Index int

	// PrivateKey holds the base58 encoded secret key.
	PrivateKey string

	PublicKey string

	CreateTime time.Time

	// Origin is one of "main", "generate", "import" or "funding".
	Origin string
}

// FundingSplit is a transfer from a source actor to a target actor that is
// not yet confirmed.
type FundingSplit struct {
	Source string
	Target string

	Attempts   int
	CreateTime time.Time
}

type RoundSummary struct {
	Round  uint64
	Policy string

	StartTime time.Time
	EndTime   time.Time

	Actors     int
	Ineligible int

	BuysConfirmed  int
	BuysFailed     int
	SellsConfirmed int
	SellsFailed    int
	Skipped        int

	QueueLen int
}

type DriverState struct {
	// NextRound is the round number of the next round.
	NextRound uint64

	LastRound *RoundSummary
}

// TelegramState holds the chat ids learned from the messages sent to the bot
// by the authorized users.
type TelegramState struct {
	ChatIDs map[string]int64
}
