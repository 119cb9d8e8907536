// Package metrics exports Bastion decision and elevation counters to
// Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/plugin"
)

// Compile-time hook checks.
var (
	_ plugin.AfterDecision   = (*Plugin)(nil)
	_ plugin.AccessRequested = (*Plugin)(nil)
	_ plugin.AccessApproved  = (*Plugin)(nil)
	_ plugin.AccessDenied    = (*Plugin)(nil)
	_ plugin.GrantRevoked    = (*Plugin)(nil)
)

// Plugin records decisions by code, decision latency, elevation workflow
// events and issued grants.
type Plugin struct {
	decisions    *prometheus.CounterVec
	evalDuration prometheus.Histogram
	elevation    *prometheus.CounterVec
	grantsIssued prometheus.Counter
}

// New creates the plugin and registers its collectors with reg. A nil reg
// uses the default registerer.
func New(reg prometheus.Registerer) (*Plugin, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Plugin{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_decisions_total",
				Help: "Access decisions by decision code.",
			},
			[]string{"decision"},
		),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bastion_decision_duration_seconds",
			Help:    "Access decision evaluation latency in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		elevation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_elevation_events_total",
				Help: "Elevation workflow events (requested, approved, denied, revoked).",
			},
			[]string{"event"},
		),
		grantsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bastion_grants_issued_total",
			Help: "Temporary permission grants created by approvals.",
		}),
	}
	for _, c := range []prometheus.Collector{p.decisions, p.evalDuration, p.elevation, p.grantsIssued} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "metrics" }

// OnAfterDecision implements plugin.AfterDecision.
func (p *Plugin) OnAfterDecision(_ context.Context, _, decision any) error {
	d, ok := decision.(*bastion.Decision)
	if !ok || d == nil {
		return nil
	}
	p.decisions.WithLabelValues(string(d.Code)).Inc()
	p.evalDuration.Observe(time.Duration(d.EvalTimeNs).Seconds())
	return nil
}

// OnAccessRequested implements plugin.AccessRequested.
func (p *Plugin) OnAccessRequested(context.Context, *accessrequest.Request) error {
	p.elevation.WithLabelValues("requested").Inc()
	return nil
}

// OnAccessApproved implements plugin.AccessApproved.
func (p *Plugin) OnAccessApproved(_ context.Context, _ *accessrequest.Request, grants []*grant.Grant) error {
	p.elevation.WithLabelValues("approved").Inc()
	p.grantsIssued.Add(float64(len(grants)))
	return nil
}

// OnAccessDenied implements plugin.AccessDenied.
func (p *Plugin) OnAccessDenied(context.Context, *accessrequest.Request) error {
	p.elevation.WithLabelValues("denied").Inc()
	return nil
}

// OnGrantRevoked implements plugin.GrantRevoked.
func (p *Plugin) OnGrantRevoked(context.Context, id.GrantID) error {
	p.elevation.WithLabelValues("revoked").Inc()
	return nil
}
