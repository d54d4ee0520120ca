// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bvk/volumebot/alerts"
	"github.com/bvk/volumebot/gobs"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shopspring/decimal"
)

// Status is the daemon state reported over the http api and the telegram
// status command.
type Status struct {
	PID    int           `json:"pid"`
	Uptime time.Duration `json:"uptime"`

	// RSS is the resident memory size in bytes. Zero when it is unknown.
	RSS uint64 `json:"rss"`

	Funder        string          `json:"funder"`
	FunderBalance decimal.Decimal `json:"funder_balance"`

	Actors    int                `json:"actors"`
	NextRound uint64             `json:"next_round"`
	LastRound *gobs.RoundSummary `json:"last_round,omitempty"`
}

func (s *Server) Status(ctx context.Context) (*Status, error) {
	actors, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	state, err := s.driver.State(ctx)
	if err != nil {
		return nil, err
	}

	funder := s.cfg.PrivateKey.PublicKey()
	balance, err := s.net.Balance(ctx, funder)
	if err != nil {
		return nil, fmt.Errorf("could not read main wallet balance: %w", err)
	}

	v := &Status{
		PID:           os.Getpid(),
		Uptime:        time.Since(s.start),
		Funder:        funder.String(),
		FunderBalance: alerts.Lamports(balance),
		Actors:        len(actors),
		NextRound:     state.NextRound,
		LastRound:     state.LastRound,
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(v.PID)); err != nil {
		slog.WarnContext(ctx, "could not open self process stats (ignored)", "err", err)
	} else if mem, err := proc.MemoryInfoWithContext(ctx); err != nil {
		slog.WarnContext(ctx, "could not read memory stats (ignored)", "err", err)
	} else {
		v.RSS = mem.RSS
	}
	return v, nil
}

func (v *Status) String() string {
	s := fmt.Sprintf("pid %d up %s rss %dMB\nfunder %s balance %s SOL\n%d actors, next round %d",
		v.PID, v.Uptime.Round(time.Second), v.RSS>>20, v.Funder, v.FunderBalance, v.Actors, v.NextRound)
	if r := v.LastRound; r != nil {
		s += fmt.Sprintf("\nlast round %d (%s) at %s: buys %d ok %d failed, sells %d ok %d failed, %d ineligible",
			r.Round, r.Policy, r.EndTime.Format(time.DateTime), r.BuysConfirmed, r.BuysFailed, r.SellsConfirmed, r.SellsFailed, r.Ineligible)
	}
	return s
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	status, err := s.Status(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "could not determine status", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.WarnContext(r.Context(), "could not write status response", "err", err)
	}
}
