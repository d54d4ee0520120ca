// Copyright (c) 2023 BVK Chaitanya

package cycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/bvk/volumebot/action"
)

type Phase string

const (
	PhaseBuy      Phase = "buy"
	PhasePipeline Phase = "pipeline"
	PhaseDrain    Phase = "drain"
	PhaseSell     Phase = "sell"
)

// Step records one action execution in a round.
type Step struct {
	Phase  Phase
	Action *action.Action
	Status action.Status
	Err    error
}

type Tally struct {
	Confirmed int
	Failed    int
	Skipped   int
}

func (t *Tally) Total() int {
	return t.Confirmed + t.Failed + t.Skipped
}

func (t *Tally) add(s action.Status) {
	switch s {
	case action.Confirmed:
		t.Confirmed++
	case action.Skipped:
		t.Skipped++
	default:
		t.Failed++
	}
}

type Report struct {
	Round  uint64
	Policy Policy

	Start time.Time
	End   time.Time

	// Actors is the number of actors that took part in the round.
	Actors int

	// Ineligible is the number of actors skipped by the eligibility gate.
	Ineligible int

	Buys  Tally
	Sells Tally

	Trace []*Step

	// QueueLen is the number of pending sells left when the round ended. Rounds
	// run to completion, so a non-zero value means a bought actor was never
	// sold.
	QueueLen int
}

func (r *Report) record(phase Phase, a *action.Action, out *action.Outcome) {
	r.Trace = append(r.Trace, &Step{Phase: phase, Action: a, Status: out.Status, Err: out.Err})
	if a.Kind == action.Buy {
		r.Buys.add(out.Status)
	} else {
		r.Sells.add(out.Status)
	}
}

func (r *Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Summary returns a one line human readable description of the round.
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "round %d (%s): %d actors, %d ineligible;", r.Round, r.Policy, r.Actors, r.Ineligible)
	fmt.Fprintf(&sb, " buys %d/%d ok;", r.Buys.Confirmed, r.Buys.Total())
	fmt.Fprintf(&sb, " sells %d/%d ok", r.Sells.Confirmed, r.Sells.Total())
	if r.QueueLen > 0 {
		fmt.Fprintf(&sb, "; %d sells left pending", r.QueueLen)
	}
	fmt.Fprintf(&sb, " in %s", r.Duration().Round(time.Second))
	return sb.String()
}
