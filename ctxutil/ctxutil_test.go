// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Retry(ctx, time.Millisecond, 0, func() error {
		if calls++; calls < 3 {
			return os.ErrNotExist
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("want success on third call, got %v after %d calls", err, calls)
	}

	calls = 0
	err = Retry(ctx, time.Millisecond, 2, func() error {
		calls++
		return os.ErrNotExist
	})
	if !errors.Is(err, os.ErrNotExist) || calls != 2 {
		t.Fatalf("want last error after 2 calls, got %v after %d calls", err, calls)
	}
}

func TestBackoff(t *testing.T) {
	if err := Backoff(context.Background(), time.Millisecond); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(os.ErrClosed)
	if err := Backoff(ctx, time.Hour); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("want cancel cause, got %v", err)
	}
}

func TestGroup(t *testing.T) {
	var g Group

	for i := 0; i < 10; i++ {
		g.Go(func(ctx context.Context) error {
			<-ctx.Done()
			return context.Cause(ctx)
		})
	}
	g.Go(func(context.Context) error {
		return os.ErrInvalid
	})
	// Wait for the failing goroutine before closing the group.
	for i := 0; ; i++ {
		g.mu.Lock()
		n := len(g.errs)
		g.mu.Unlock()
		if n != 0 {
			break
		}
		if i > 1000 {
			t.Fatalf("failing goroutine did not finish")
		}
		Sleep(context.Background(), time.Millisecond)
	}

	if err := g.Close(); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want only the early failure, got %v", err)
	}
	if !errors.Is(context.Cause(g.Context()), os.ErrClosed) {
		t.Fatalf("group context must be closed")
	}
}
