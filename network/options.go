// Copyright (c) 2023 BVK Chaitanya

package network

import (
	"fmt"
	"net/url"
	"os"

	"github.com/gagliardetto/solana-go/rpc"
)

type Options struct {
	// Endpoint is the JSON-RPC url.
	Endpoint string

	Commitment rpc.CommitmentType

	// RequestsPerSecond limits the rate of rpc calls.
	RequestsPerSecond float64

	// SendMaxRetries is passed to the network as the rebroadcast limit for sent
	// transactions.
	SendMaxRetries uint
}

func (v *Options) setDefaults() {
	if len(v.Endpoint) == 0 {
		v.Endpoint = rpc.MainNetBeta_RPC
	}
	if len(v.Commitment) == 0 {
		v.Commitment = rpc.CommitmentConfirmed
	}
	if v.RequestsPerSecond == 0 {
		v.RequestsPerSecond = 10
	}
}

func (v *Options) Check() error {
	u, err := url.Parse(v.Endpoint)
	if err != nil {
		return fmt.Errorf("could not parse rpc endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("rpc endpoint must be a http(s) url: %w", os.ErrInvalid)
	}
	if v.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
