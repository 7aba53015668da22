package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds the policy tooling metrics.
type Registry struct {
	// Firewall rule graph
	PolicyLoads   *prometheus.CounterVec
	BlocksDecoded *prometheus.CounterVec
	LoadErrors    *prometheus.CounterVec
	GraphNodes    *prometheus.GaugeVec

	// Rendering
	Renders *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
// Collectors are registered with the default Prometheus registerer.
func Get() *Registry {
	once.Do(func() {
		registry = New(prometheus.DefaultRegisterer)
	})
	return registry
}

// New creates a Registry whose collectors are registered with reg.
// A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	r := &Registry{}

	r.PolicyLoads = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "epolicy_policy_loads_total",
		Help: "Policy documents decoded, by policy type and result",
	}, []string{"type", "result"})

	r.BlocksDecoded = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "epolicy_firewall_blocks_total",
		Help: "Firewall settings blocks processed, by block kind",
	}, []string{"kind"})

	r.LoadErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "epolicy_load_errors_total",
		Help: "Policy decode failures, by reason",
	}, []string{"reason"})

	r.GraphNodes = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epolicy_firewall_graph_nodes",
		Help: "Nodes in the most recently loaded firewall rule graph",
	}, []string{"kind"})

	r.Renders = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "epolicy_renders_total",
		Help: "Reports rendered, by output format",
	}, []string{"format"})

	return r
}

// RecordBlock records one decoded (or skipped) settings block.
func (r *Registry) RecordBlock(kind string) {
	r.BlocksDecoded.WithLabelValues(kind).Inc()
}

// RecordLoad records the outcome of a policy load. reason classifies err
// and is ignored on success.
func (r *Registry) RecordLoad(policyType string, err error, reason func(error) string) {
	if err == nil {
		r.PolicyLoads.WithLabelValues(policyType, "ok").Inc()
		return
	}
	r.PolicyLoads.WithLabelValues(policyType, "error").Inc()
	label := "other"
	if reason != nil {
		label = reason(err)
	}
	r.LoadErrors.WithLabelValues(label).Inc()
}

// SetGraphSize publishes the node counts of a freshly loaded graph.
func (r *Registry) SetGraphSize(sequences, rules, aggregates int) {
	r.GraphNodes.WithLabelValues("sequence").Set(float64(sequences))
	r.GraphNodes.WithLabelValues("rule").Set(float64(rules))
	r.GraphNodes.WithLabelValues("aggregate").Set(float64(aggregates))
}

// RecordRender records a completed render in the given format.
func (r *Registry) RecordRender(format string) {
	r.Renders.WithLabelValues(format).Inc()
}

// Classify returns the label of the first sentinel in reasons that err wraps,
// or "other".
func Classify(err error, reasons map[string]error) string {
	for label, sentinel := range reasons {
		if errors.Is(err, sentinel) {
			return label
		}
	}
	return "other"
}
