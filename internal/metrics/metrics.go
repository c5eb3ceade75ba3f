// Package metrics exposes sync run statistics as Prometheus metrics.
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/wikisync/internal/publish"
)

const namespace = "wikisync"

// Recorder holds the collectors for sync runs.
type Recorder struct {
	reg           *prom.Registry
	runs          *prom.CounterVec
	runDuration   prom.Histogram
	notes         *prom.CounterVec
	assets        *prom.CounterVec
	deleted       prom.Counter
	warnings      prom.Counter
	lastSuccess   prom.Gauge
	publishedNote prom.Gauge
}

// NewRecorder registers the sync collectors on reg. A nil reg gets a fresh
// registry that also carries the Go and process collectors.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	}
	r := &Recorder{
		reg: reg,
		runs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by outcome",
		}, []string{"outcome"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of completed sync runs",
			Buckets:   prom.DefBuckets,
		}),
		notes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notes_total",
			Help:      "Notes processed by result (published, unchanged, ineligible, failed)",
		}, []string{"result"}),
		assets: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "assets_copied_total",
			Help:      "Assets copied into the target by origin",
		}, []string{"origin"}),
		deleted: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stale_files_deleted_total",
			Help:      "Target files deleted because their note left the vault or stopped qualifying",
		}),
		warnings: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal problems such as missing referenced files",
		}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		publishedNote: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "published_notes",
			Help:      "Notes in the mapping after the last successful run",
		}),
	}
	reg.MustRegister(r.runs, r.runDuration, r.notes, r.assets, r.deleted, r.warnings, r.lastSuccess, r.publishedNote)
	return r
}

// ObserveRun records a completed run.
func (r *Recorder) ObserveRun(rep *publish.Report) {
	if r == nil || rep == nil {
		return
	}
	r.runs.WithLabelValues("ok").Inc()
	r.runDuration.Observe(rep.Duration().Seconds())
	for _, p := range rep.Published {
		if p.Changed {
			r.notes.WithLabelValues("published").Inc()
		} else {
			r.notes.WithLabelValues("unchanged").Inc()
		}
	}
	for _, s := range rep.Skipped {
		if s.Failed {
			r.notes.WithLabelValues("failed").Inc()
		} else {
			r.notes.WithLabelValues("ineligible").Inc()
		}
	}
	for _, a := range rep.Assets {
		if a.Changed {
			r.assets.WithLabelValues(a.Origin).Inc()
		}
	}
	r.deleted.Add(float64(len(rep.Deleted)))
	r.warnings.Add(float64(len(rep.Warnings)))
	r.lastSuccess.Set(float64(rep.FinishedAt.Unix()))
	r.publishedNote.Set(float64(len(rep.Mapping)))
}

// ObserveFailure records a run that aborted.
func (r *Recorder) ObserveFailure() {
	if r == nil {
		return
	}
	r.runs.WithLabelValues("failed").Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
