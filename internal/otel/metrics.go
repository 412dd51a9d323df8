package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pane-relay"

// Metrics holds all OTEL metric instruments for pane-relay.
// All counters are cumulative (monotonic) and safe for concurrent use.
// Every method is a no-op on a nil *Metrics.
type Metrics struct {
	// Lookup cache counters (partitioned by cache name: repo, pr)
	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter
	CacheEvictions metric.Int64Counter

	LookupFailures metric.Int64Counter

	// Batch items partitioned by outcome: fulfilled, rejected
	BatchItems metric.Int64Counter

	// Screen updates partitioned by kind: full, delta, noop
	ScreenUpdates         metric.Int64Counter
	ScreenDeltaRejections metric.Int64Counter

	ActivitySuppressed metric.Int64Counter

	meter metric.Meter
}

// NewMetrics creates all metric instruments on the global MeterProvider,
// which is a no-op until Init starts the exporters.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.CacheHits, "lookup_cache.hits", "Lookups served from cache"},
		{&m.CacheMisses, "lookup_cache.misses", "Lookups not in cache or expired"},
		{&m.CacheEvictions, "lookup_cache.evictions", "Entries evicted because the cache was full"},
		{&m.LookupFailures, "lookups.failures", "git/gh lookups that failed or timed out"},
		{&m.BatchItems, "batch.items", "Batch items processed, partitioned by outcome"},
		{&m.ScreenUpdates, "screen.updates", "Screen updates produced, partitioned by kind (full, delta, noop)"},
		{&m.ScreenDeltaRejections, "screen.delta_rejections", "Screen updates a mirror could not apply"},
		{&m.ActivitySuppressed, "activity.suppressed", "Activity events suppressed as focus echoes"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}

// ObserveHit records a lookup cache hit.
func (m *Metrics) ObserveHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(context.Background(), 1, cacheAttr(cache))
}

// ObserveMiss records a lookup cache miss.
func (m *Metrics) ObserveMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(context.Background(), 1, cacheAttr(cache))
}

// ObserveEviction records a capacity eviction.
func (m *Metrics) ObserveEviction(cache string) {
	if m == nil {
		return
	}
	m.CacheEvictions.Add(context.Background(), 1, cacheAttr(cache))
}

func cacheAttr(cache string) metric.AddOption {
	return metric.WithAttributes(attribute.String("cache", cache))
}

// RecordLookupFailure records a failed git or gh lookup.
func (m *Metrics) RecordLookupFailure(ctx context.Context, lookup string) {
	if m == nil {
		return
	}
	m.LookupFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("lookup", lookup)))
}

// RecordBatch records the outcome counts of one batch run.
func (m *Metrics) RecordBatch(ctx context.Context, fulfilled, rejected int) {
	if m == nil {
		return
	}
	if fulfilled > 0 {
		m.BatchItems.Add(ctx, int64(fulfilled), metric.WithAttributes(attribute.String("outcome", "fulfilled")))
	}
	if rejected > 0 {
		m.BatchItems.Add(ctx, int64(rejected), metric.WithAttributes(attribute.String("outcome", "rejected")))
	}
}

// RecordScreenUpdate records a produced screen update of the given kind.
func (m *Metrics) RecordScreenUpdate(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.ScreenUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDeltaRejection records an update a mirror refused.
func (m *Metrics) RecordDeltaRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.ScreenDeltaRejections.Add(ctx, 1)
}

// RecordSuppressed records a suppressed activity event.
func (m *Metrics) RecordSuppressed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActivitySuppressed.Add(ctx, 1)
}

// Gauges are the sources sampled at every metric collection. Nil
// funcs are skipped.
type Gauges struct {
	MirroredPanes func() int
	FocusTracked  func() int
	Datagrams     func() (received, dropped int64)
}

// RegisterGauges registers observable instruments backed by g.
func (m *Metrics) RegisterGauges(g Gauges) error {
	if m == nil {
		return nil
	}
	panes, err := m.meter.Int64ObservableGauge("screen.mirrored_panes",
		metric.WithDescription("Panes with a published screen"))
	if err != nil {
		return err
	}
	tracked, err := m.meter.Int64ObservableGauge("activity.tracked_panes",
		metric.WithDescription("Panes with a live focus record"))
	if err != nil {
		return err
	}
	dgrams, err := m.meter.Int64ObservableCounter("events.datagrams",
		metric.WithDescription("Hook datagrams read, partitioned by outcome (received, dropped)"))
	if err != nil {
		return err
	}
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if g.MirroredPanes != nil {
			o.ObserveInt64(panes, int64(g.MirroredPanes()))
		}
		if g.FocusTracked != nil {
			o.ObserveInt64(tracked, int64(g.FocusTracked()))
		}
		if g.Datagrams != nil {
			received, dropped := g.Datagrams()
			o.ObserveInt64(dgrams, received, metric.WithAttributes(attribute.String("outcome", "received")))
			o.ObserveInt64(dgrams, dropped, metric.WithAttributes(attribute.String("outcome", "dropped")))
		}
		return nil
	}, panes, tracked, dgrams)
	return err
}
