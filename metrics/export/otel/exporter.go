package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/hyphae-os/hyphae"
	"github.com/hyphae-os/hyphae/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() hyphae.MetricsSnapshot
	AuditDropped() uint64
}

// FeedStats is the slice of a feed stream the exporter observes.
type FeedStats interface {
	Accepted() uint64
	Dropped() uint64
	Buffered() int
}

// Option configures an [OTelExporter].
type Option func(*OTelExporter)

// WithFeed adds the event feed instruments.
func WithFeed(feed FeedStats) Option {
	return func(e *OTelExporter) { e.feed = feed }
}

type observedCounter struct {
	id         hyphae.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      hyphae.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type feedInstruments struct {
	accepted metric.Int64ObservableCounter
	dropped  metric.Int64ObservableCounter
	buffered metric.Int64ObservableGauge
}

type OTelExporter struct {
	source       metricsSource
	feed         FeedStats
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	feedIns      *feedInstruments
}

func NewOTelExporter(meter metric.Meter, engine *hyphae.Engine, opts ...Option) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine, opts...)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource, opts ...Option) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}
	for _, opt := range opts {
		opt(exporter)
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+4)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	auditDropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	if exporter.feed != nil {
		fi := &feedInstruments{}
		if fi.accepted, err = meter.Int64ObservableCounter(internaldefs.FeedAcceptedName, metric.WithDescription(internaldefs.FeedAcceptedHelp)); err != nil {
			return nil, fmt.Errorf("create feed accepted counter: %w", err)
		}
		if fi.dropped, err = meter.Int64ObservableCounter(internaldefs.FeedDroppedName, metric.WithDescription(internaldefs.FeedDroppedHelp)); err != nil {
			return nil, fmt.Errorf("create feed dropped counter: %w", err)
		}
		if fi.buffered, err = meter.Int64ObservableGauge(internaldefs.FeedBufferedName, metric.WithDescription(internaldefs.FeedBufferedHelp)); err != nil {
			return nil, fmt.Errorf("create feed buffered gauge: %w", err)
		}
		exporter.feedIns = fi
		observables = append(observables, fi.accepted, fi.dropped, fi.buffered)
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i := 0; i < len(cumulative); i++ {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.feedIns != nil {
		observer.ObserveInt64(e.feedIns.accepted, int64(e.feed.Accepted()))
		observer.ObserveInt64(e.feedIns.dropped, int64(e.feed.Dropped()))
		observer.ObserveInt64(e.feedIns.buffered, int64(e.feed.Buffered()))
	}
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
