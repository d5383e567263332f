package observability

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded in the result label.
const (
	ResultOK              = "ok"
	ResultMiss            = "miss"
	ResultVersionMismatch = "version_mismatch"
	ResultError           = "error"
)

// Metrics holds the collectors. Create one per registry.
type Metrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	completions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waypoint_persistence_operations_total",
				Help: "Snapshot operations by kind and outcome.",
			},
			[]string{"flow_id", "op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "waypoint_persistence_duration_seconds",
				Help:    "Latency of snapshot operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waypoint_transitions_total",
				Help: "State-changing dispatches by action.",
			},
			[]string{"flow_id", "action", "to"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waypoint_completions_total",
				Help: "Flows that reached a terminal step.",
			},
			[]string{"flow_id"},
		),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.transitions, m.completions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTransition records a transition event.
func (m *Metrics) ObserveTransition(e domain.TransitionEvent) {
	m.transitions.WithLabelValues(e.FlowID, string(e.Action), e.To).Inc()
	if e.Status == domain.StatusComplete && e.From != e.To {
		m.completions.WithLabelValues(e.FlowID).Inc()
	}
}

func (m *Metrics) observe(flowID, op, result string, start time.Time) {
	m.operations.WithLabelValues(flowID, op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Persister wraps next with operation metrics.
func (m *Metrics) Persister(next ports.FlowPersister) ports.FlowPersister {
	return &instrumentedPersister{next: next, metrics: m}
}

type instrumentedPersister struct {
	next    ports.FlowPersister
	metrics *Metrics
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrVersionMismatch):
		return ResultVersionMismatch
	default:
		return ResultError
	}
}

func (p *instrumentedPersister) Save(ctx context.Context, flowID string, state *domain.FlowState, opts ports.PersistOptions) (*domain.PersistedFlowState, error) {
	start := time.Now()
	saved, err := p.next.Save(ctx, flowID, state, opts)
	p.metrics.observe(flowID, "save", resultOf(err), start)
	return saved, err
}

func (p *instrumentedPersister) Restore(ctx context.Context, flowID string, opts ports.PersistOptions) (*domain.PersistedFlowState, error) {
	start := time.Now()
	restored, err := p.next.Restore(ctx, flowID, opts)
	result := resultOf(err)
	if err == nil && restored == nil {
		result = ResultMiss
	}
	p.metrics.observe(flowID, "restore", result, start)
	return restored, err
}

func (p *instrumentedPersister) Remove(ctx context.Context, flowID string, opts ports.PersistOptions) error {
	start := time.Now()
	err := p.next.Remove(ctx, flowID, opts)
	p.metrics.observe(flowID, "remove", resultOf(err), start)
	return err
}
