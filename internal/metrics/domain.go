package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m3uproxy_ingest_runs_total",
		Help: "Total ingestion runs per source, by outcome",
	}, []string{"source", "outcome"})

	ingestChannelsLoaded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "m3uproxy_ingest_channels_loaded",
		Help: "Number of channels (programmes for an EPG source) loaded from a source's last successful ingest",
	}, []string{"source"})

	pipelineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "m3uproxy_pipeline_run_duration_seconds",
		Help:    "Duration of a full proxy pipeline run (load through publish)",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"proxy"})

	pipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "m3uproxy_pipeline_stage_duration_seconds",
		Help:    "Duration of a single pipeline stage",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"proxy", "stage"})

	pipelineChannelsPublished = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "m3uproxy_pipeline_channels_published",
		Help: "Number of channels in a proxy's most recently published artifact",
	}, []string{"proxy"})

	activeStreamSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "m3uproxy_active_stream_sessions",
		Help: "Number of active client sessions per proxy and mode",
	}, []string{"proxy", "mode"})

	streamBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m3uproxy_stream_bytes_total",
		Help: "Total bytes relayed to clients by proxy and mode",
	}, []string{"proxy", "mode"})
)

// RecordIngestRun records the outcome of one source's ingest attempt and,
// on success, sets the loaded gauge to the count passed in: the ingest
// runner passes channels for a stream source and programmes for an EPG
// source.
func RecordIngestRun(source, outcome string, channels int) {
	ingestRunsTotal.WithLabelValues(source, outcome).Inc()
	if outcome == "success" {
		ingestChannelsLoaded.WithLabelValues(source).Set(float64(channels))
	}
}

// RecordPipelineRun records a completed pipeline run's total duration and
// resulting published channel count.
func RecordPipelineRun(proxy string, d time.Duration, channels int) {
	pipelineRunDuration.WithLabelValues(proxy).Observe(d.Seconds())
	pipelineChannelsPublished.WithLabelValues(proxy).Set(float64(channels))
}

// RecordPipelineStage records one stage's duration within a pipeline run.
func RecordPipelineStage(proxy, stage string, d time.Duration) {
	pipelineStageDuration.WithLabelValues(proxy, stage).Observe(d.Seconds())
}

// SetActiveStreamSessions reports the current session count for a proxy/mode pair.
func SetActiveStreamSessions(proxy, mode string, count int) {
	activeStreamSessions.WithLabelValues(proxy, mode).Set(float64(count))
}

// AddStreamBytes accumulates bytes relayed to a client for a proxy/mode pair.
func AddStreamBytes(proxy, mode string, n int) {
	streamBytesTotal.WithLabelValues(proxy, mode).Add(float64(n))
}
