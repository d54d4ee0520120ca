// Copyright (c) 2023 BVK Chaitanya

// Package daemonize respawns the current program as a background process.
package daemonize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/volumebot/ctxutil"
	"golang.org/x/sys/unix"
)

// CheckFunc reports whether the background process is initialized. A non-nil
// error with retry set to true makes the parent check again after a pause.
type CheckFunc func(ctx context.Context, child *os.Process) (retry bool, err error)

// Daemonize respawns the current program in the background with the same
// command-line arguments. It must be called during the program startup before
// opening databases or starting servers.
//
// The envKey environment variable tells the parent and the child apart. It
// holds the parent's pid in the child process.
//
// Standard input and outputs of the background process are replaced with
// /dev/null.
//
// Parent process waits till the check function confirms the child is
// initialized and exits the program; it returns non-nil error only when the
// child could not be started. Child process returns nil.
func Daemonize(ctx context.Context, envKey string, check CheckFunc) error {
	if v := os.Getenv(envKey); len(v) == 0 {
		if err := daemonizeParent(ctx, envKey, check); err != nil {
			return err
		}
		os.Exit(0)
	}
	if err := daemonizeChild(); err != nil {
		slog.Error("could not daemonize the child process", "err", err)
		os.Exit(1)
	}
	return nil
}

func daemonizeParent(ctx context.Context, envKey string, check CheckFunc) error {
	binary, err := exec.LookPath(os.Args[0])
	if err != nil {
		return fmt.Errorf("failed to lookup binary: %w", err)
	}
	binaryPath, err := filepath.Abs(binary)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for binary: %w", err)
	}

	file, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer file.Close()

	// Receive signal when child-process dies.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGCHLD, os.Interrupt)
	defer stop()

	env := append(os.Environ(), fmt.Sprintf("%s=%d", envKey, os.Getpid()))
	attr := &os.ProcAttr{
		Dir:   "/",
		Env:   env,
		Files: []*os.File{file, file, file},
	}
	child, err := os.StartProcess(binaryPath, os.Args, attr)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	if check != nil {
		ctxutil.Sleep(ctx, time.Second)
		for ctx.Err() == nil {
			retry, err := check(ctx, child)
			if err == nil {
				break
			}
			if !retry {
				child.Signal(os.Interrupt)
				return fmt.Errorf("background process failed the initialization check: %w", err)
			}
			slog.WarnContext(ctx, "daemon process not yet initialized", "err", err)
			ctxutil.Sleep(ctx, time.Second)
		}
	}
	if err := context.Cause(ctx); err != nil {
		return fmt.Errorf("could not initialize the background process: %w", err)
	}
	return nil
}

func daemonizeChild() error {
	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("could not set session id: %w", err)
	}
	return nil
}
