package loader

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/types"
)

// Metrics holds the loader collectors
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the loader collectors on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nanomap",
			Subsystem: "loader",
			Name:      "fetch_total",
			Help:      "Reference fetches issued against the document store.",
		}, []string{"op", "collection", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nanomap",
			Subsystem: "loader",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent issuing reference fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.fetches, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// InstrumentedLoader records fetch counts and latency around another Loader
type InstrumentedLoader struct {
	next    Loader
	metrics *Metrics
}

// Instrument wraps next with metrics
func Instrument(next Loader, metrics *Metrics) *InstrumentedLoader {
	return &InstrumentedLoader{next: next, metrics: metrics}
}

var _ Loader = (*InstrumentedLoader)(nil)

func (l *InstrumentedLoader) observe(op string, coll types.ReferenceCollection, start time.Time, outcome string) {
	l.metrics.fetches.WithLabelValues(op, coll.String(), outcome).Inc()
	l.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// FetchOne implements Loader.FetchOne
func (l *InstrumentedLoader) FetchOne(ctx context.Context, q query.Query, coll types.ReferenceCollection) (types.Document, bool, error) {
	start := time.Now()
	doc, found, err := l.next.FetchOne(ctx, q, coll)
	outcome := "found"
	switch {
	case err != nil:
		outcome = "error"
	case !found:
		outcome = "missing"
	}
	l.observe("one", coll, start, outcome)
	return doc, found, err
}

// FetchMany implements Loader.FetchMany
func (l *InstrumentedLoader) FetchMany(ctx context.Context, q query.Query, coll types.ReferenceCollection) (*Cursor, error) {
	start := time.Now()
	cursor, err := l.next.FetchMany(ctx, q, coll)
	outcome := "found"
	if err != nil {
		outcome = "error"
	}
	l.observe("many", coll, start, outcome)
	return cursor, err
}
