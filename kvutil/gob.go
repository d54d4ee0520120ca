// Copyright (c) 2023 BVK Chaitanya

// Package kvutil has helpers to keep gob-encoded values in a key-value
// database.
package kvutil

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/bvkgo/kv"
)

func decode[T any](key string, r io.Reader) (*T, error) {
	v := new(T)
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return nil, fmt.Errorf("could not gob-decode value at key %q: %w", key, err)
	}
	return v, nil
}

// Get returns the value at the key. Errors wrap os.ErrNotExist when the key
// is missing.
func Get[T any](ctx context.Context, g kv.Getter, key string) (*T, error) {
	r, err := g.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("could not get value at key %q: %w", key, err)
	}
	return decode[T](key, r)
}

func Set[T any](ctx context.Context, s kv.Setter, key string, value *T) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("could not gob-encode value for key %q: %w", key, err)
	}
	return s.Set(ctx, key, &buf)
}

func GetDB[T any](ctx context.Context, db kv.Database, key string) (value *T, err error) {
	err = kv.WithReader(ctx, db, func(ctx context.Context, r kv.Reader) error {
		value, err = Get[T](ctx, r, key)
		return err
	})
	return value, err
}

func SetDB[T any](ctx context.Context, db kv.Database, key string, value *T) error {
	return kv.WithReadWriter(ctx, db, func(ctx context.Context, rw kv.ReadWriter) error {
		return Set(ctx, rw, key, value)
	})
}
