// Copyright (c) 2023 BVK Chaitanya

package actor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/bvk/volumebot/gobs"
	"github.com/bvk/volumebot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/gagliardetto/solana-go"
)

const (
	KeyPrefix = "/actors"

	// indexPrefix maps public keys to actor indices.
	indexPrefix = "/actor-index"
)

func actorKey(index int) string {
	return path.Join(KeyPrefix, fmt.Sprintf("%010d", index))
}

// Store is an append-only ordered list of actor credentials.
type Store struct {
	db kv.Database
}

func NewStore(db kv.Database) *Store {
	return &Store{db: db}
}

// Append persists a new actor credential at the end of the list. Returns
// os.ErrExist if the key is already stored.
func (s *Store) Append(ctx context.Context, key solana.PrivateKey, origin string) (*Actor, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("private key must be 64 bytes: %w", os.ErrInvalid)
	}
	pub := key.PublicKey().String()

	var actor *Actor
	appendf := func(ctx context.Context, rw kv.ReadWriter) error {
		if _, err := rw.Get(ctx, path.Join(indexPrefix, pub)); err == nil {
			return fmt.Errorf("actor %s: %w", pub, os.ErrExist)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		begin, end := kvutil.PathRange(KeyPrefix)
		_, last, err := kvutil.Last[gobs.ActorKey](ctx, rw, begin, end)
		if err != nil {
			return err
		}
		index := 0
		if last != nil {
			index = last.Index + 1
		}

		v := &gobs.ActorKey{
			Index:      index,
			PrivateKey: key.String(),
			PublicKey:  pub,
			CreateTime: time.Now(),
			Origin:     origin,
		}
		if err := kvutil.Set(ctx, rw, actorKey(index), v); err != nil {
			return fmt.Errorf("could not save actor %d: %w", index, err)
		}
		if err := kvutil.Set(ctx, rw, path.Join(indexPrefix, pub), &index); err != nil {
			return fmt.Errorf("could not save actor index: %w", err)
		}
		actor = &Actor{Index: index, Key: key}
		return nil
	}
	if err := kv.WithReadWriter(ctx, s.db, appendf); err != nil {
		return nil, err
	}
	return actor, nil
}

// Generate creates a new random identity and persists it before returning.
func (s *Store) Generate(ctx context.Context, origin string) (*Actor, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate private key: %w", err)
	}
	return s.Append(ctx, key, origin)
}

// Load returns all actors in the order they were added.
func (s *Store) Load(ctx context.Context) ([]*Actor, error) {
	var actors []*Actor
	load := func(key string, v *gobs.ActorKey) error {
		pk, err := solana.PrivateKeyFromBase58(v.PrivateKey)
		if err != nil {
			return fmt.Errorf("could not decode private key at %q: %w", key, err)
		}
		actors = append(actors, &Actor{Index: v.Index, Key: pk})
		return nil
	}
	begin, end := kvutil.PathRange(KeyPrefix)
	if err := kvutil.AscendDB(ctx, s.db, begin, end, load); err != nil {
		return nil, fmt.Errorf("could not load actors: %w", err)
	}
	return actors, nil
}

// Lookup returns the actor with the given public key.
func (s *Store) Lookup(ctx context.Context, pub solana.PublicKey) (*Actor, error) {
	index, err := kvutil.GetDB[int](ctx, s.db, path.Join(indexPrefix, pub.String()))
	if err != nil {
		return nil, err
	}
	v, err := kvutil.GetDB[gobs.ActorKey](ctx, s.db, actorKey(*index))
	if err != nil {
		return nil, err
	}
	pk, err := solana.PrivateKeyFromBase58(v.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("could not decode private key for %s: %w", pub, err)
	}
	return &Actor{Index: v.Index, Key: pk}, nil
}

// ImportJSON appends keys from a JSON array of base58 secret keys. Keys
// already in the store are ignored. Returns the number of new actors.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var secrets []string
	if err := json.NewDecoder(r).Decode(&secrets); err != nil {
		return 0, fmt.Errorf("could not decode wallets json: %w", err)
	}
	n := 0
	for i, secret := range secrets {
		key, err := solana.PrivateKeyFromBase58(secret)
		if err != nil {
			return n, fmt.Errorf("could not decode key at position %d: %w", i, err)
		}
		if _, err := s.Append(ctx, key, "import"); err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// ExportJSON writes all actor keys as a JSON array of base58 secret keys.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	actors, err := s.Load(ctx)
	if err != nil {
		return err
	}
	secrets := make([]string, 0, len(actors))
	for _, a := range actors {
		secrets = append(secrets, a.Key.String())
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(secrets)
}
