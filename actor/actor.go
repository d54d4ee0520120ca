// Copyright (c) 2023 BVK Chaitanya

package actor

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Actor is a wallet that takes part in trading rounds. Balances are never
// cached on the actor.
type Actor struct {
	Index int

	Key solana.PrivateKey
}

func (a *Actor) PublicKey() solana.PublicKey {
	return a.Key.PublicKey()
}

func (a *Actor) String() string {
	return a.Key.PublicKey().String()
}

// Keyring maps actor identities to their signing keys. It is refreshed at the
// start of every round.
type Keyring struct {
	mu   sync.Mutex
	keys map[solana.PublicKey]solana.PrivateKey
}

func (k *Keyring) Reset(actors []*Actor) {
	keys := make(map[solana.PublicKey]solana.PrivateKey, len(actors))
	for _, a := range actors {
		keys[a.PublicKey()] = a.Key
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = keys
}

func (k *Keyring) Add(a *Actor) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys == nil {
		k.keys = make(map[solana.PublicKey]solana.PrivateKey)
	}
	k.keys[a.PublicKey()] = a.Key
}

func (k *Keyring) PrivateKey(pub solana.PublicKey) (solana.PrivateKey, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.keys[pub]
	return v, ok
}
