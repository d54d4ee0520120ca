// Copyright (c) 2023 BVK Chaitanya

package kvutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/bvkgo/kv"
)

// forEach calls fn for every item of an iterator till it is exhausted.
func forEach[V io.Reader](ctx context.Context, fetch func(context.Context, bool) (string, V, error), fn func(key string, value io.Reader) error) error {
	k, v, err := fetch(ctx, false)
	for ; err == nil; k, v, err = fetch(ctx, true) {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("could not fetch from iterator: %w", err)
	}
	return nil
}

// PathRange returns the key range for all keys under a directory.
func PathRange(dir string) (begin string, end string) {
	dir = path.Clean(dir)
	if dir == "/" {
		return "", ""
	}
	return dir + "/", dir + string('/'+1)
}

// Ascend calls fn with the decoded values in the key range in ascending
// order.
func Ascend[T any](ctx context.Context, r kv.Reader, begin, end string, fn func(key string, value *T) error) error {
	return Walk(ctx, r, begin, end, func(key string, value io.Reader) error {
		v, err := decode[T](key, value)
		if err != nil {
			return err
		}
		return fn(key, v)
	})
}

func AscendDB[T any](ctx context.Context, db kv.Database, begin, end string, fn func(key string, value *T) error) error {
	return kv.WithReader(ctx, db, func(ctx context.Context, r kv.Reader) error {
		return Ascend(ctx, r, begin, end, fn)
	})
}

// Last returns the last key and its value in the range. Returns an empty key
// and nil value when the range is empty.
func Last[T any](ctx context.Context, r kv.Reader, begin, end string) (string, *T, error) {
	it, err := r.Descend(ctx, begin, end)
	if err != nil {
		return "", nil, err
	}
	defer kv.Close(it)

	k, v, err := it.Fetch(ctx, false)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("could not fetch from iterator: %w", err)
	}
	value, err := decode[T](k, v)
	if err != nil {
		return k, nil, err
	}
	return k, value, nil
}

// Walk calls fn with the raw values in the key range in ascending order.
// Empty begin and end cover the entire database.
func Walk(ctx context.Context, r kv.Reader, begin, end string, fn func(key string, value io.Reader) error) error {
	it, err := r.Ascend(ctx, begin, end)
	if err != nil {
		return err
	}
	defer kv.Close(it)

	return forEach(ctx, it.Fetch, fn)
}
