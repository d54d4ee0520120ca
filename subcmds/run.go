// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/volumebot/config"
	"github.com/bvk/volumebot/ctxutil"
	"github.com/bvk/volumebot/daemonize"
	"github.com/bvk/volumebot/httputil"
	"github.com/bvk/volumebot/server"
	"github.com/bvk/volumebot/subcmds/cmdutil"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/nightlyone/lockfile"
	"github.com/visvasity/cli"
	"github.com/visvasity/sglog"
)

type Run struct {
	cmdutil.ServerFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	noPprof     bool
	debug       bool
	logToStderr bool

	secretsPath string
	dataDir     string
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.BoolVar(&c.noPprof, "no-pprof", false, "when true net/http/pprof handler is not registered")
	fset.BoolVar(&c.debug, "debug", false, "when true, debug messages are logged")
	fset.BoolVar(&c.logToStderr, "log-to-stderr", false, "when true, logs are written to stderr instead of the log files")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to notification credentials file")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Purpose() string {
	return "Runs volumebot trading rounds in foreground or background"
}

func (c *Run) Description() string {
	return `

Command "run" starts the volumebot service. Every round, all actors in the
database with enough balance buy and later sell the token configured by the
TOKEN_MINT variable. Settings are read from the environment and the .env file
in the current directory or its parents.

The main wallet (PRIVATE_KEY) is added as the first actor when the database
has no actors. With GENERATE_ACTORS=true every actor moves its balance into a
newly generated actor after the round.

The service serves /pid, /status, /metrics and /db/ handlers on the listen
address.

SECRETS FILE

Round reports and low balance alerts are sent to Telegram or Pushover when
their credentials are present in the secrets file. Use the "setup" commands to
create it. An example secrets file is given below:

    {
        "telegram":{
            "token":"111111111:AAAAAAAAAA",
            "owner":"username"
        }
    }

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir, err := cmdutil.DataDir(c.dataDir)
	if err != nil {
		return err
	}

	// Configuration is loaded before daemonizing so that the env file variables
	// are inherited by the background process.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if len(c.secretsPath) == 0 {
		c.secretsPath = cmdutil.SecretsPath(dataDir)
	}
	secrets, err := config.SecretsFromFile(c.secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		secrets = nil
	}

	addr, err := c.TCPAddr()
	if err != nil {
		return err
	}

	// Health checker for the background process initialization. We need to
	// verify that responding http server is really our child and not an older
	// instance.
	check := func(ctx context.Context, child *os.Process) (bool, error) {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/pid", addr.String()))
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return true, fmt.Errorf("http status: %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return true, err
		}
		if pid := string(data); pid != fmt.Sprintf("%d", child.Pid) {
			return c.restart, fmt.Errorf("is another instance already running? pid mismatch: want %d got %s", child.Pid, pid)
		}
		return false, nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, "VOLUMEBOT_DAEMONIZE", check); err != nil {
			return err
		}
	}

	if !c.logToStderr {
		logsDir := filepath.Join(dataDir, "logs")
		if err := os.MkdirAll(logsDir, 0700); err != nil {
			return fmt.Errorf("could not create logs directory: %w", err)
		}
		backend := sglog.NewBackend(&sglog.Options{
			LogDirs:           []string{logsDir},
			ReuseFileDuration: time.Hour,
		})
		defer backend.Close()
		if c.debug {
			backend.EnableDebugLog()
		}
		slog.SetDefault(slog.New(backend.Handler()))
	} else if c.debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	slog.InfoContext(ctx, "using data directory", "dir", dataDir, "secrets", c.secretsPath, "asset", cfg.TokenMint, "policy", cfg.Policy)

	lockPath := filepath.Join(dataDir, "volumebot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			slog.InfoContext(ctx, "waiting for the previous instance to shutdown", "pid", owner.Pid)
			attempts := int(c.shutdownTimeout/time.Second) + 1
			if err := ctxutil.Retry(ctx, time.Second, attempts, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	// Start HTTP server.
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return err
	}
	defer s.Close()

	tcpServer, err := s.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start http server on %s: %w", addr, err)
	}
	defer s.Stop(tcpServer)

	if !c.noPprof {
		s.AddHandler("/debug/pprof/", http.HandlerFunc(pprof.Index))
		s.AddHandler("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
		s.AddHandler("/debug/pprof/heap", pprof.Handler("heap"))
		s.AddHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	}

	db, dbCloser, err := cmdutil.OpenBadger(dataDir)
	if err != nil {
		return err
	}
	defer dbCloser.Close()

	s.AddHandler("/db/", http.StripPrefix("/db", kvhttp.Handler(db)))

	bot, err := server.New(ctx, db, cfg, secrets)
	if err != nil {
		return err
	}
	defer bot.Close()

	for k, v := range bot.HandlerMap() {
		s.AddHandler(k, v)
	}

	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	}))
	slog.InfoContext(ctx, "started volumebot server", "addr", addr)

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "volumebot rounds have failed", "err", err)
		return err
	}

	// Keep serving the status api when the round budget is exhausted.
	<-ctx.Done()
	slog.InfoContext(ctx, "volumebot server is shutting down")
	return nil
}
