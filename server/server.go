// Copyright (c) 2023 BVK Chaitanya

// Package server assembles the volumebot components from the configuration
// and runs the trading rounds along with the notification watchers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/actor"
	"github.com/bvk/volumebot/alerts"
	"github.com/bvk/volumebot/config"
	"github.com/bvk/volumebot/ctxutil"
	"github.com/bvk/volumebot/cycle"
	"github.com/bvk/volumebot/driver"
	"github.com/bvk/volumebot/eligibility"
	"github.com/bvk/volumebot/funding"
	"github.com/bvk/volumebot/jupiter"
	"github.com/bvk/volumebot/metrics"
	"github.com/bvk/volumebot/network"
	"github.com/bvk/volumebot/pushover"
	"github.com/bvk/volumebot/submit"
	"github.com/bvk/volumebot/telegram"
	"github.com/bvkgo/kv"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/visvasity/topic"
)

// Network is the rpc client interface used by all components.
type Network interface {
	Balance(ctx context.Context, pub solana.PublicKey) (uint64, error)
	AssetBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	TokenAmount(ctx context.Context, owner, mint solana.PublicKey) (*rpc.UiTokenAmount, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
}

type Server struct {
	db  kv.Database
	cfg *config.Config

	start time.Time

	net       Network
	factory   action.Factory
	submitter action.Submitter

	store  *actor.Store
	keys   *actor.Keyring
	gate   *eligibility.Gate
	funder *funding.Propagator
	driver *driver.Driver

	metrics *metrics.Metrics
	alerter *alerts.Alerter

	telegramClient *telegram.Client

	closers []func() error
}

// New creates the rpc, swap api and notification clients for the configuration
// and wires them into a server. Secrets can be nil.
func New(ctx context.Context, db kv.Database, cfg *config.Config, secrets *config.Secrets) (_ *Server, status error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var closers []func() error
	defer func() {
		if status != nil {
			for _, c := range closers {
				c()
			}
		}
	}()

	client, err := network.New(cfg.NetworkOptions())
	if err != nil {
		return nil, fmt.Errorf("could not create rpc client: %w", err)
	}
	closers = append(closers, client.Close)

	var confirmer submit.Confirmer = submit.NewPoller(client, cfg.SubmitOptions())
	if len(cfg.WebsocketEndpoint) != 0 {
		confirmer = submit.NewWebsocketConfirmer(cfg.WebsocketEndpoint, client, cfg.SubmitOptions())
	}

	jup, err := jupiter.New(cfg.JupiterOptions())
	if err != nil {
		return nil, fmt.Errorf("could not create swap api client: %w", err)
	}

	var notifiers []alerts.Notifier
	var tclient *telegram.Client
	if secrets != nil {
		if err := secrets.Check(); err != nil {
			return nil, err
		}
		if secrets.Telegram != nil {
			c, err := telegram.New(ctx, db, secrets.Telegram)
			if err != nil {
				return nil, fmt.Errorf("could not create telegram client: %w", err)
			}
			closers = append(closers, c.Close)
			notifiers = append(notifiers, c)
			tclient = c
		}
		if secrets.Pushover != nil {
			c, err := pushover.New(secrets.Pushover)
			if err != nil {
				return nil, fmt.Errorf("could not create pushover client: %w", err)
			}
			notifiers = append(notifiers, c)
		}
	}

	s, err := newServer(db, cfg, client, jup, submit.New(client, confirmer), notifiers...)
	if err != nil {
		return nil, err
	}
	s.closers = closers

	if tclient != nil {
		s.telegramClient = tclient
		if err := s.addTelegramCommands(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newServer(db kv.Database, cfg *config.Config, net Network, factory action.Factory, submitter action.Submitter, notifiers ...alerts.Notifier) (*Server, error) {
	s := &Server{
		db:        db,
		cfg:       cfg,
		start:     time.Now(),
		net:       net,
		factory:   factory,
		submitter: submitter,
		store:     actor.NewStore(db),
		keys:      new(actor.Keyring),
		metrics:   metrics.New(),
	}

	gate, err := eligibility.New(cfg.GateOptions(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create eligibility gate: %w", err)
	}
	s.gate = gate

	exec := action.NewExecutor(s.keys, factory, submitter, net, action.Abandon)
	orch, err := cycle.New(exec, cfg.CycleOptions())
	if err != nil {
		return nil, fmt.Errorf("could not create orchestrator: %w", err)
	}

	funder, err := funding.New(db, s.store, net, submitter, cfg.FundingOptions())
	if err != nil {
		return nil, fmt.Errorf("could not create funding propagator: %w", err)
	}
	s.funder = funder

	drv, err := driver.New(db, s.store, s.keys, net, gate, orch, funder, cfg.DriverOptions())
	if err != nil {
		return nil, fmt.Errorf("could not create round driver: %w", err)
	}
	s.driver = drv

	alerter, err := alerts.New(net, cfg.AlertOptions(), notifiers...)
	if err != nil {
		return nil, fmt.Errorf("could not create alerter: %w", err)
	}
	s.alerter = alerter
	return s, nil
}

func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Server) Store() *actor.Store {
	return s.store
}

func (s *Server) Driver() *driver.Driver {
	return s.driver
}

// HandlerMap returns the http handlers served by the daemon.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		"/status":  http.HandlerFunc(s.serveStatus),
		"/metrics": s.metrics.Handler(),
	}
}

// mainActor returns the main wallet as an actor that is not part of the
// store.
func (s *Server) mainActor() *actor.Actor {
	return &actor.Actor{Index: -1, Key: s.cfg.PrivateKey}
}

// SeedMainWallet adds the main wallet as the first actor when the store is
// empty.
func (s *Server) SeedMainWallet(ctx context.Context) error {
	actors, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(actors) != 0 {
		return nil
	}
	a, err := s.store.Append(ctx, s.cfg.PrivateKey, "main")
	if err != nil {
		return fmt.Errorf("could not add main wallet to the actors: %w", err)
	}
	slog.InfoContext(ctx, "added main wallet as the first actor", "actor", a)
	return nil
}

// Run runs the trading rounds till the round budget is exhausted or the
// context is canceled. Round reports are forwarded to the metrics and the
// notifiers.
func (s *Server) Run(ctx context.Context) error {
	if err := s.SeedMainWallet(ctx); err != nil {
		return err
	}

	// Subscribe before the first round so that no report is missed.
	metricsReceiver, err := topic.Subscribe(s.driver.Reports(), 0, false)
	if err != nil {
		return fmt.Errorf("could not subscribe to round reports: %w", err)
	}
	alertsReceiver, err := topic.Subscribe(s.driver.Reports(), 0, false)
	if err != nil {
		metricsReceiver.Close()
		return fmt.Errorf("could not subscribe to round reports: %w", err)
	}

	var watchers ctxutil.Group
	defer func() {
		if err := watchers.Close(); err != nil {
			slog.ErrorContext(ctx, "round report watchers have failed", "err", err)
		}
	}()
	watchers.Go(func(ctx context.Context) error {
		return s.metrics.Watch(ctx, metricsReceiver)
	})
	watchers.Go(func(ctx context.Context) error {
		return s.alerter.Watch(ctx, alertsReceiver)
	})

	return s.driver.Run(ctx, s.cfg.GenerateActors)
}
