// Copyright (c) 2023 BVK Chaitanya

package metrics

import (
	"context"
	"net/http"
	"os"

	"github.com/bvk/volumebot/action"
	"github.com/bvk/volumebot/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/visvasity/topic"
)

// Metrics exports round outcomes in the prometheus format.
type Metrics struct {
	registry *prometheus.Registry

	rounds        prometheus.Counter
	actions       *prometheus.CounterVec
	roundDuration prometheus.Histogram
	eligible      prometheus.Gauge
	ineligible    prometheus.Gauge
	pendingSells  prometheus.Gauge
	funded        prometheus.Counter
	fundingErrors prometheus.Counter
	lastRound     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volumebot",
			Name:      "rounds_total",
			Help:      "Number of completed rounds.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volumebot",
			Name:      "actions_total",
			Help:      "Executed actions by kind and outcome.",
		}, []string{"kind", "status"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "volumebot",
			Name:      "round_duration_seconds",
			Help:      "Wall clock duration of rounds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		eligible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "volumebot",
			Name:      "eligible_actors",
			Help:      "Actors that traded in the last round.",
		}),
		ineligible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "volumebot",
			Name:      "ineligible_actors",
			Help:      "Actors skipped by the balance check in the last round.",
		}),
		pendingSells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "volumebot",
			Name:      "pending_sells",
			Help:      "Sells left in the queue when the last round ended.",
		}),
		funded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volumebot",
			Name:      "funded_actors_total",
			Help:      "Actors funded by the funding step.",
		}),
		fundingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volumebot",
			Name:      "funding_errors_total",
			Help:      "Funding attempts that gave up.",
		}),
		lastRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "volumebot",
			Name:      "last_round",
			Help:      "Number of the last completed round.",
		}),
	}
	m.registry.MustRegister(
		m.rounds,
		m.actions,
		m.roundDuration,
		m.eligible,
		m.ineligible,
		m.pendingSells,
		m.funded,
		m.fundingErrors,
		m.lastRound,
	)
	return m
}

// Registry returns the registry holding all volumebot metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics over http.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Observe(r *driver.Round) {
	m.rounds.Inc()
	m.lastRound.Set(float64(r.Round))
	m.roundDuration.Observe(r.Duration().Seconds())
	m.eligible.Set(float64(r.Actors))
	m.ineligible.Set(float64(r.Ineligible))
	m.pendingSells.Set(float64(r.QueueLen))
	m.funded.Add(float64(len(r.Funded)))
	m.fundingErrors.Add(float64(r.FundingErrors))

	for _, s := range r.Trace {
		m.actions.WithLabelValues(s.Action.Kind.String(), s.Status.String()).Inc()
	}
}

// Watch observes every round delivered to the receiver till the context is
// canceled. The receiver is closed on return. Callers subscribe before the
// publisher starts so that no round is missed.
func (m *Metrics) Watch(ctx context.Context, receiver *topic.Receiver[*driver.Round]) error {
	defer receiver.Close()

	ch, err := topic.ReceiveCh(receiver)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case r, ok := <-ch:
			if !ok {
				return os.ErrClosed
			}
			m.Observe(r)
		}
	}
}

// actionStatuses lists the label values exported for every action kind.
var actionStatuses = []action.Status{action.Confirmed, action.Failed, action.Indeterminate, action.Skipped}

// Reset initializes all action counters to zero so they are exported before
// the first round.
func (m *Metrics) Reset() {
	for _, kind := range []action.Kind{action.Buy, action.Sell} {
		for _, s := range actionStatuses {
			m.actions.WithLabelValues(kind.String(), s.String())
		}
	}
}
