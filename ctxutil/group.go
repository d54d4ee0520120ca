// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"errors"
	"os"
	"sync"
)

// Group runs background goroutines that are canceled together with
// os.ErrClosed as the cause. Zero value is ready to use.
type Group struct {
	once   sync.Once
	ctx    context.Context
	cancel context.CancelCauseFunc

	wg sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

func (g *Group) init() {
	g.ctx, g.cancel = context.WithCancelCause(context.Background())
}

// Context returns the context passed to all goroutines of the group.
func (g *Group) Context() context.Context {
	g.once.Do(g.init)
	return g.ctx
}

// Go runs f in a new goroutine. Errors returned after the group is closed are
// discarded.
func (g *Group) Go(f func(ctx context.Context) error) {
	g.once.Do(g.init)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		if err := f(g.ctx); err != nil && context.Cause(g.ctx) == nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()
}

// Close cancels all goroutines and waits for them to return. Returns the
// errors from goroutines that failed before Close was called.
func (g *Group) Close() error {
	g.once.Do(g.init)
	g.cancel(os.ErrClosed)
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
