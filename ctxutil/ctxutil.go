// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"time"
)

// Sleep blocks the caller for given timeout duration. Returns early if the
// input context is canceled.
func Sleep(ctx context.Context, d time.Duration) {
	sctx, scancel := context.WithTimeout(ctx, d)
	<-sctx.Done()
	scancel()
}

// Backoff sleeps for the given duration and returns the context's cause if it
// was canceled in the mean time.
func Backoff(ctx context.Context, d time.Duration) error {
	Sleep(ctx, d)
	return context.Cause(ctx)
}

// Retry runs the input function till it succeeds, till it was tried the
// given number of attempts or till the input context is canceled. Zero
// attempts means no limit. Returns the last error from the function.
func Retry(ctx context.Context, interval time.Duration, attempts int, f func() error) (err error) {
	for i := 1; ; i++ {
		if err = f(); err == nil {
			return nil
		}
		if attempts > 0 && i >= attempts {
			return err
		}
		if context.Cause(ctx) != nil {
			return err
		}
		Sleep(ctx, interval)
	}
}
