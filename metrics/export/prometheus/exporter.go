package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hyphae-os/hyphae"
	"github.com/hyphae-os/hyphae/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() hyphae.MetricsSnapshot
	AuditDropped() uint64
}

// FeedStats is the slice of a feed stream the exporter reads.
type FeedStats interface {
	Accepted() uint64
	Dropped() uint64
	Buffered() int
}

// PrometheusExporter renders hyphae metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
	feed   FeedStats
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *hyphae.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// WithFeed adds the event feed series to the output.
func (p *PrometheusExporter) WithFeed(feed FeedStats) *PrometheusExporter {
	p.feed = feed
	return p
}

// Handler returns an http.Handler that serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" when the engine has metrics
// disabled and no feed is attached.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 && p.feed == nil {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	if len(snapshot.Counters) > 0 {
		for _, def := range internaldefs.CounterDefs {
			writeSample(&b, "counter", def.Name, def.Help, strconv.FormatUint(snapshot.Counters[def.ID], 10))
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	writeSample(&b, "counter", internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, strconv.FormatUint(dropped, 10))

	if p.feed != nil {
		writeSample(&b, "counter", internaldefs.FeedAcceptedName, internaldefs.FeedAcceptedHelp, strconv.FormatUint(p.feed.Accepted(), 10))
		writeSample(&b, "counter", internaldefs.FeedDroppedName, internaldefs.FeedDroppedHelp, strconv.FormatUint(p.feed.Dropped(), 10))
		writeSample(&b, "gauge", internaldefs.FeedBufferedName, internaldefs.FeedBufferedHelp, strconv.Itoa(p.feed.Buffered()))
	}

	return b.String()
}

func writeHeader(b *strings.Builder, kind, name, help string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, kind, name, help, value string) {
	writeHeader(b, kind, name, help)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, "histogram", name, help)

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	// Snapshots carry bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
