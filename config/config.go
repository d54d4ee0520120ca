// Copyright (c) 2023 BVK Chaitanya

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/bvk/volumebot/alerts"
	"github.com/bvk/volumebot/cycle"
	"github.com/bvk/volumebot/driver"
	"github.com/bvk/volumebot/eligibility"
	"github.com/bvk/volumebot/envfile"
	"github.com/bvk/volumebot/funding"
	"github.com/bvk/volumebot/jupiter"
	"github.com/bvk/volumebot/network"
	"github.com/bvk/volumebot/submit"
	"github.com/gagliardetto/solana-go"
)

// EnvFile is the name of the env file searched from the current directory.
const EnvFile = ".env"

// Config holds the bot settings read from the environment.
type Config struct {
	// PrivateKey is the main wallet. It funds the first generated actor.
	PrivateKey solana.PrivateKey

	RPCEndpoint string

	// WebsocketEndpoint is optional. When set, confirmations are received
	// through signature subscriptions instead of polling.
	WebsocketEndpoint string

	SlippageBps int

	TokenMint solana.PublicKey

	RequestsPerSecond float64

	MinTrade uint64
	MaxTrade uint64
	Baseline uint64
	Headroom uint64
	Reserve  uint64

	Policy        cycle.Policy
	Shuffle       bool
	ActionPause   time.Duration
	RoundInterval time.Duration
	Rounds        uint64

	GenerateActors     bool
	FundEvery          uint64
	MinFunding         uint64
	FeeReserve         uint64
	FundingBackoff     time.Duration
	FundingMaxAttempts int

	// LowBalance is the main wallet balance that triggers an alert. Zero
	// disables the alert.
	LowBalance uint64
}

// Load reads the env file if one exists and then the configuration from the
// process environment.
func Load() (*Config, error) {
	if err := envfile.UpdateEnv(EnvFile, envfile.SearchCurrentDir(true)); err != nil {
		return nil, fmt.Errorf("could not load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

type reader struct {
	lookup func(string) (string, bool)

	err error
}

func (r *reader) required(name string) string {
	v, ok := r.lookup(name)
	if (!ok || len(v) == 0) && r.err == nil {
		r.err = fmt.Errorf("environment variable %s is not set: %w", name, os.ErrInvalid)
	}
	return v
}

func (r *reader) str(name, def string) string {
	if v, ok := r.lookup(name); ok && len(v) != 0 {
		return v
	}
	return def
}

func (r *reader) uint(name string, def uint64) uint64 {
	s := r.str(name, "")
	if len(s) == 0 {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("could not parse %s: %w", name, err)
	}
	return v
}

func (r *reader) int(name string, def int) int {
	s := r.str(name, "")
	if len(s) == 0 {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("could not parse %s: %w", name, err)
	}
	return v
}

func (r *reader) float(name string, def float64) float64 {
	s := r.str(name, "")
	if len(s) == 0 {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("could not parse %s: %w", name, err)
	}
	return v
}

func (r *reader) bool(name string, def bool) bool {
	s := r.str(name, "")
	if len(s) == 0 {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("could not parse %s: %w", name, err)
	}
	return v
}

func (r *reader) duration(name string, def time.Duration) time.Duration {
	s := r.str(name, "")
	if len(s) == 0 {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("could not parse %s: %w", name, err)
	}
	return v
}

// FromEnv reads the configuration using the lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	r := &reader{lookup: lookup}

	privateKey := r.required("PRIVATE_KEY")
	tokenMint := r.required("TOKEN_MINT")
	c := &Config{
		RPCEndpoint:       r.required("RPC_ENDPOINT"),
		WebsocketEndpoint: r.str("RPC_WEBSOCKET_ENDPOINT", ""),
		SlippageBps:       r.int("SLIPPAGE", 100),
		RequestsPerSecond: r.float("RPC_REQUESTS_PER_SECOND", 0),

		MinTrade: r.uint("MIN_TRADE_LAMPORTS", 10_000_000),
		MaxTrade: r.uint("MAX_TRADE_LAMPORTS", 20_000_000),
		Baseline: r.uint("BASELINE_LAMPORTS", 0),
		Headroom: r.uint("HEADROOM", 2),
		Reserve:  r.uint("RESERVE_LAMPORTS", 4_000_000),

		Shuffle:       r.bool("SHUFFLE", false),
		ActionPause:   r.duration("ACTION_PAUSE", 0),
		RoundInterval: r.duration("ROUND_INTERVAL", 10*time.Second),
		Rounds:        r.uint("ROUNDS", 0),

		GenerateActors:     r.bool("GENERATE_ACTORS", false),
		FundEvery:          r.uint("FUND_EVERY", 1),
		MinFunding:         r.uint("MIN_FUNDING_LAMPORTS", 5_000_000),
		FeeReserve:         r.uint("FEE_RESERVE_LAMPORTS", 1_000_000),
		FundingBackoff:     r.duration("FUNDING_BACKOFF", 5*time.Second),
		FundingMaxAttempts: r.int("FUNDING_MAX_ATTEMPTS", 0),

		LowBalance: r.uint("LOW_BALANCE_LAMPORTS", 0),
	}
	if r.err != nil {
		return nil, r.err
	}

	policy, err := cycle.ParsePolicy(r.str("POLICY", "staggered"))
	if err != nil {
		return nil, err
	}
	c.Policy = policy

	key, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse PRIVATE_KEY: %w", err)
	}
	c.PrivateKey = key

	mint, err := solana.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return nil, fmt.Errorf("could not parse TOKEN_MINT: %w", err)
	}
	c.TokenMint = mint

	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// Check validates the settings by checking the options of every component.
func (c *Config) Check() error {
	checks := []interface{ Check() error }{
		c.NetworkOptions(),
		c.JupiterOptions(),
		c.GateOptions(),
		c.CycleOptions(),
		c.FundingOptions(),
		c.DriverOptions(),
	}
	for _, v := range checks {
		if err := v.Check(); err != nil {
			return err
		}
	}
	if len(c.WebsocketEndpoint) != 0 {
		u, err := url.Parse(c.WebsocketEndpoint)
		if err != nil {
			return fmt.Errorf("could not parse websocket endpoint: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("websocket endpoint must be a ws(s) url: %w", os.ErrInvalid)
		}
	}
	return nil
}

func (c *Config) NetworkOptions() *network.Options {
	return &network.Options{
		Endpoint:          c.RPCEndpoint,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

func (c *Config) SubmitOptions() *submit.Options {
	return &submit.Options{}
}

func (c *Config) JupiterOptions() *jupiter.Options {
	return &jupiter.Options{SlippageBps: c.SlippageBps}
}

func (c *Config) GateOptions() *eligibility.Options {
	return &eligibility.Options{
		MinTrade: c.MinTrade,
		MaxTrade: c.MaxTrade,
		Baseline: c.Baseline,
		Headroom: c.Headroom,
		Reserve:  c.Reserve,
	}
}

func (c *Config) CycleOptions() *cycle.Options {
	return &cycle.Options{
		Policy:  c.Policy,
		Shuffle: c.Shuffle,
		Pause:   c.ActionPause,
	}
}

func (c *Config) FundingOptions() *funding.Options {
	opts := &funding.Options{
		MinFunding:  c.MinFunding,
		FeeReserve:  c.FeeReserve,
		Backoff:     c.FundingBackoff,
		MaxAttempts: c.FundingMaxAttempts,
	}
	return opts
}

func (c *Config) DriverOptions() *driver.Options {
	return &driver.Options{
		Asset:         c.TokenMint,
		RoundInterval: c.RoundInterval,
		Rounds:        c.Rounds,
		FundEvery:     c.FundEvery,
	}
}

func (c *Config) AlertOptions() *alerts.Options {
	return &alerts.Options{
		Funder:     c.PrivateKey.PublicKey(),
		LowBalance: c.LowBalance,
	}
}
