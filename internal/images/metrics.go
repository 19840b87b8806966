package images

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pipeline outcomes. Counters are registered on the given
// registry so tests and multiple pipelines stay isolated.
type Metrics struct {
	Downloads *prometheus.CounterVec
	Skips     *prometheus.CounterVec
	Duration  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_images_downloaded_total",
			Help: "Images written to disk, by origin.",
		}, []string{"origin"}),
		Skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_images_skipped_total",
			Help: "Images skipped during a batch, by reason.",
		}, []string{"reason"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_images_batch_duration_seconds",
			Help:    "Wall time of one page download batch.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Downloads, m.Skips, m.Duration)
	}
	return m
}
