// Copyright (c) 2023 BVK Chaitanya

package kvutil

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bvk/volumebot/gobs"
	"github.com/bvkgo/kv"
)

// Export writes all database items to w as a stream of gob-encoded
// gobs.KeyValue items.
func Export(ctx context.Context, r kv.Reader, w io.Writer) error {
	it, err := r.Scan(ctx)
	if err != nil {
		return fmt.Errorf("could not create scanning iterator: %w", err)
	}
	defer kv.Close(it)

	encoder := gob.NewEncoder(w)
	return forEach(ctx, it.Fetch, func(key string, value io.Reader) error {
		data, err := io.ReadAll(value)
		if err != nil {
			return fmt.Errorf("could not read value at key %q: %w", key, err)
		}
		if err := encoder.Encode(&gobs.KeyValue{Key: key, Value: data}); err != nil {
			return fmt.Errorf("could not encode item at key %q: %w", key, err)
		}
		return nil
	})
}

// Import adds the items written by Export into the database.
func Import(ctx context.Context, r io.Reader, rw kv.ReadWriter) error {
	decoder := gob.NewDecoder(r)
	for {
		var item gobs.KeyValue
		if err := decoder.Decode(&item); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not decode item from backup: %w", err)
		}
		if err := rw.Set(ctx, item.Key, bytes.NewReader(item.Value)); err != nil {
			return fmt.Errorf("could not restore at key %q: %w", item.Key, err)
		}
	}
}

func DeleteAll(ctx context.Context, rw kv.ReadWriter) error {
	var keys []string
	it, err := rw.Scan(ctx)
	if err != nil {
		return fmt.Errorf("could not create scanning iterator: %w", err)
	}
	err = forEach(ctx, it.Fetch, func(key string, _ io.Reader) error {
		keys = append(keys, key)
		return nil
	})
	kv.Close(it)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := rw.Delete(ctx, k); err != nil {
			return fmt.Errorf("could not delete key %q: %w", k, err)
		}
	}
	return nil
}

// BackupDB exports the database into a file. Existing file is replaced only
// after the backup is complete.
func BackupDB(ctx context.Context, db kv.Database, file string) (status error) {
	abspath, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("could not determine absolute path: %w", err)
	}

	fp, err := os.CreateTemp(filepath.Dir(abspath), ".backup*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer func() {
		fp.Close()
		if status != nil {
			os.Remove(fp.Name())
		}
	}()

	bw := bufio.NewWriter(fp)
	if err := kv.WithReader(ctx, db, func(ctx context.Context, r kv.Reader) error {
		return Export(ctx, r, bw)
	}); err != nil {
		return fmt.Errorf("could not export db content: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("could not flush backup file: %w", err)
	}
	if err := fp.Sync(); err != nil {
		return fmt.Errorf("could not sync backup file: %w", err)
	}
	if err := os.Rename(fp.Name(), abspath); err != nil {
		return fmt.Errorf("could not rename temp file to %q: %w", abspath, err)
	}
	return nil
}
