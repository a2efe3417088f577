package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the pipeline's Prometheus collectors.
type Recorder struct {
	ReceiptsProcessed  *prometheus.CounterVec
	SectionsRemoved    *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	EnrichmentFailures prometheus.Counter
	ModelAttempts      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ReceiptsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paragony_receipts_processed_total",
			Help: "Receipts run through the pipeline, by outcome",
		}, []string{"outcome"}),
		SectionsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paragony_sections_removed_total",
			Help: "Receipt sections removed by repair",
		}, []string{"section"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paragony_stage_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		EnrichmentFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "paragony_enrichment_failures_total",
			Help: "Product classifications that failed and kept the original line",
		}),
		ModelAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paragony_model_attempts_total",
			Help: "Model calls, by result",
		}, []string{"result"}),
	}
}

// Processed counts one finished receipt. outcome is "ok" or the failed stage.
func (r *Recorder) Processed(outcome string) {
	if r == nil {
		return
	}
	r.ReceiptsProcessed.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SectionRemoved(section string) {
	if r == nil {
		return
	}
	r.SectionsRemoved.WithLabelValues(section).Inc()
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) EnrichmentFailed() {
	if r == nil {
		return
	}
	r.EnrichmentFailures.Inc()
}

// ModelAttempt counts one model call; result is "ok", "transport" or "parse".
func (r *Recorder) ModelAttempt(result string) {
	if r == nil {
		return
	}
	r.ModelAttempts.WithLabelValues(result).Inc()
}

// WriteTextfile dumps g in the node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
