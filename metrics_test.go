package hyphae

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIgnoresUpdates(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty: %+v", s)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLogout)
	nilMetrics.Observe(MetricPinLatency, time.Second)
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricSessionCreated)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricSessionCreated); got != 8000 {
		t.Fatalf("counter = %d", got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginLatency, 10*time.Millisecond)
	m.Observe(MetricLoginLatency, 300*time.Millisecond)
	m.Observe(MetricLoginLatency, 10*time.Second)
	m.Observe(MetricLoginSuccess, time.Second)

	s := m.Snapshot()
	buckets := s.Histograms[MetricLoginLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d", len(buckets))
	}
	if buckets[0] != 1 || buckets[4] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
	if _, ok := s.Counters[MetricLoginLatency]; ok {
		t.Fatal("latency ids must not appear as counters")
	}
	if len(HistogramBucketBounds()) != histBucketCount-1 {
		t.Fatal("bounds must cover every finite bucket")
	}
}

func TestMetricNames(t *testing.T) {
	seen := map[string]bool{}
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.String()
		if name == "" || seen[name] {
			t.Fatalf("metric %d has empty or duplicate name %q", id, name)
		}
		seen[name] = true
	}
	if MetricID(999).String() != "unknown" {
		t.Fatal("out of range id must be unknown")
	}
}
