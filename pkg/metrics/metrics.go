// Package metrics turns trace events into Prometheus metrics.
//
// A Collector is a log.Logger. Install it as the manager's trace logger,
// alone or next to a file logger through log.MultiLogger:
//
//	reg := prometheus.NewRegistry()
//	cfg := observer.DefaultConfig()
//	cfg.TraceLogger = log.NewMultiLogger(fileLogger, metrics.NewCollector(reg))
//
// Handler serves the registry in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qtilities/qtilities-go/pkg/log"
)

const namespace = "qtilities"

// Collector counts attach, detach, ownership, filter and codec events.
// Prometheus metrics are safe for concurrent use.
type Collector struct {
	// AttachTotal counts attaches by outcome.
	AttachTotal *prometheus.CounterVec

	// DetachTotal counts detaches by outcome.
	DetachTotal *prometheus.CounterVec

	// OwnershipDecisions counts resolver decisions by policy and decision.
	OwnershipDecisions *prometheus.CounterVec

	// FilterRejections counts filter vetoes by filter and hook.
	FilterRejections *prometheus.CounterVec

	// CodecRuns counts export and import runs by direction, format and result.
	CodecRuns *prometheus.CounterVec

	// CodecDuration observes codec run durations.
	CodecDuration *prometheus.HistogramVec

	// LiveObservers is the number of observers created and not yet destroyed.
	LiveObservers prometheus.Gauge

	// Errors counts error events.
	Errors prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		AttachTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "attach_total",
			Help:      "Attach attempts by outcome",
		}, []string{"outcome"}),
		DetachTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "detach_total",
			Help:      "Detach attempts by outcome",
		}, []string{"outcome"}),
		OwnershipDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ownership",
			Name:      "decisions_total",
			Help:      "Ownership resolver decisions by policy and decision",
		}, []string{"policy", "decision"}),
		FilterRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "rejections_total",
			Help:      "Subject filter rejections by filter and hook",
		}, []string{"filter", "hook"}),
		CodecRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "runs_total",
			Help:      "Export and import runs by direction, format and result",
		}, []string{"direction", "format", "result"}),
		CodecDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "duration_seconds",
			Help:      "Export and import run durations",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"direction", "format"}),
		LiveObservers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "live",
			Help:      "Observers created and not yet destroyed",
		}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error events",
		}),
	}
}

// Log updates the metrics for one event.
func (c *Collector) Log(e log.Event) {
	switch e.Category {
	case log.CategoryAttach:
		c.AttachTotal.WithLabelValues(outcomeLabel(e.Outcome)).Inc()
	case log.CategoryDetach:
		c.DetachTotal.WithLabelValues(outcomeLabel(e.Outcome)).Inc()
	case log.CategoryOwnership:
		if e.Ownership != nil {
			c.OwnershipDecisions.WithLabelValues(e.Ownership.Policy, e.Ownership.Decision).Inc()
		}
	case log.CategoryFilter:
		if e.Filter != nil && e.Outcome == log.OutcomeRejected {
			c.FilterRejections.WithLabelValues(e.Filter.Filter, e.Filter.Hook).Inc()
		}
	case log.CategoryCodec:
		if e.Codec != nil {
			dir := e.Codec.Direction.String()
			c.CodecRuns.WithLabelValues(dir, e.Codec.Format, e.Codec.Result).Inc()
			c.CodecDuration.WithLabelValues(dir, e.Codec.Format).Observe(e.Codec.Duration.Seconds())
		}
	case log.CategoryLifecycle:
		// Destruction events carry the Deleted decision.
		if e.Ownership != nil {
			c.LiveObservers.Dec()
		} else {
			c.LiveObservers.Inc()
		}
	case log.CategoryError:
		c.Errors.Inc()
	}
}

func outcomeLabel(o log.Outcome) string {
	switch o {
	case log.OutcomeSuccess:
		return "success"
	case log.OutcomeRejected:
		return "rejected"
	case log.OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Compile-time interface satisfaction check.
var _ log.Logger = (*Collector)(nil)
