package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the acquisition counters for one hardware source. The
// registerer is injected so embedding applications control exposure;
// pass prometheus.DefaultRegisterer for the usual /metrics endpoint.
type Metrics struct {
	FramesAcquired       prometheus.Counter
	FramesDropped        prometheus.Counter
	Recordings           prometheus.Counter
	RecordingsSuperseded prometheus.Counter
	GrabTimeouts         prometheus.Counter
	SourceFaults         prometheus.Counter
	Viewing              prometheus.Gauge
	Recording            prometheus.Gauge
}

// New creates and registers the metric set for one source id.
func New(reg prometheus.Registerer, sourceID string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"source": sourceID}
	return &Metrics{
		FramesAcquired: factory.NewCounter(prometheus.CounterOpts{
			Name:        "acqgo_frames_acquired_total",
			Help:        "Frames completed by the acquisition loop.",
			ConstLabels: labels,
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name:        "acqgo_frames_dropped_total",
			Help:        "Frames abandoned mid-acquisition (aborts, parameter changes).",
			ConstLabels: labels,
		}),
		Recordings: factory.NewCounter(prometheus.CounterOpts{
			Name:        "acqgo_recordings_total",
			Help:        "Recordings completed and handed to the sink.",
			ConstLabels: labels,
		}),
		RecordingsSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Name:        "acqgo_recordings_superseded_total",
			Help:        "Recordings superseded by a newer start_recording request.",
			ConstLabels: labels,
		}),
		GrabTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name:        "acqgo_grab_timeouts_total",
			Help:        "Blocking grab or record calls that timed out.",
			ConstLabels: labels,
		}),
		SourceFaults: factory.NewCounter(prometheus.CounterOpts{
			Name:        "acqgo_source_faults_total",
			Help:        "Hardware faults that idled the acquisition loop.",
			ConstLabels: labels,
		}),
		Viewing: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "acqgo_viewing",
			Help:        "1 while the source is in view mode.",
			ConstLabels: labels,
		}),
		Recording: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "acqgo_recording",
			Help:        "1 while a recording is in flight.",
			ConstLabels: labels,
		}),
	}
}
