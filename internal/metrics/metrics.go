package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "brewlog"

// Collectors holds the Prometheus instruments used across the service.
// A nil *Collectors is valid and records nothing.
type Collectors struct {
	feedDuration        *prometheus.HistogramVec
	notificationsTotal  *prometheus.CounterVec
	pushResultsTotal    *prometheus.CounterVec
	relayInvocations    *prometheus.CounterVec
	sweepNudgesTotal    prometheus.Counter
	sweepCandidateGauge prometheus.Gauge
}

// NewCollectors creates the instruments and registers them with registerer.
func NewCollectors(registerer prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		feedDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_rank_duration_seconds",
				Help:      "Latency of feed ranking requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"viewer"},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification write outcomes by type and status",
			},
			[]string{"type", "status"},
		),
		pushResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_results_total",
				Help:      "Per-subscription push delivery outcomes",
			},
			[]string{"outcome"},
		),
		relayInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_invocations_total",
				Help:      "Outbox relay dispatch invocations by result",
			},
			[]string{"result"},
		),
		sweepNudgesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_nudges_total",
				Help:      "Nudge notifications created by the inactivity sweep",
			},
		),
		sweepCandidateGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sweep_last_candidates",
				Help:      "Inactive users found by the most recent sweep before capping",
			},
		),
	}

	for _, collector := range []prometheus.Collector{
		c.feedDuration,
		c.notificationsTotal,
		c.pushResultsTotal,
		c.relayInvocations,
		c.sweepNudgesTotal,
		c.sweepCandidateGauge,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) ObserveFeed(anonymous bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	viewer := "signed_in"
	if anonymous {
		viewer = "anonymous"
	}
	c.feedDuration.WithLabelValues(viewer).Observe(elapsed.Seconds())
}

func (c *Collectors) CountNotification(notificationType, status string) {
	if c == nil {
		return
	}
	c.notificationsTotal.WithLabelValues(notificationType, status).Inc()
}

func (c *Collectors) CountPushResult(outcome string) {
	if c == nil {
		return
	}
	c.pushResultsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collectors) CountRelayInvocation(result string) {
	if c == nil {
		return
	}
	c.relayInvocations.WithLabelValues(result).Inc()
}

func (c *Collectors) RecordSweep(candidates, nudged int) {
	if c == nil {
		return
	}
	c.sweepCandidateGauge.Set(float64(candidates))
	c.sweepNudgesTotal.Add(float64(nudged))
}
