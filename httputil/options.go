// Copyright (c) 2023 BVK Chaitanya

package httputil

import (
	"fmt"
	"time"
)

type Options struct {
	// ServerCheckTimeout is the max time to wait for a new listener to serve
	// its first request.
	ServerCheckTimeout time.Duration

	// ServerCheckRetryInterval is the wait time between the readiness probes.
	ServerCheckRetryInterval time.Duration

	// ShutdownTimeout is the max time Stop waits for the in-flight requests
	// before closing the connections.
	ShutdownTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.ServerCheckTimeout == 0 {
		v.ServerCheckTimeout = 10 * time.Second
	}
	if v.ServerCheckRetryInterval == 0 {
		v.ServerCheckRetryInterval = time.Second
	}
	if v.ShutdownTimeout == 0 {
		v.ShutdownTimeout = 5 * time.Second
	}
}

func (v *Options) Check() error {
	if v.ServerCheckRetryInterval > v.ServerCheckTimeout {
		return fmt.Errorf("server check retry interval cannot exceed the check timeout")
	}
	return nil
}
