package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusAPI counts broken and warning reports by id and exposes
// ReportCount values as gauges before handing everything to Inner.
type PrometheusAPI struct {
	Inner API

	broken   *prometheus.CounterVec
	warnings *prometheus.CounterVec
	counts   *prometheus.GaugeVec
}

// NewPrometheusAPI registers its collectors with `reg`, pass
// prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewPrometheusAPI(reg prometheus.Registerer, inner API) PrometheusAPI {
	factory := promauto.With(reg)
	return PrometheusAPI{
		Inner: inner,
		broken: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cohoscrape_broken_total",
				Help: "Number of broken component reports.",
			},
			[]string{"id"},
		),
		warnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cohoscrape_warnings_total",
				Help: "Number of warning reports.",
			},
			[]string{"id"},
		),
		counts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cohoscrape_count",
				Help: "Latest value reported for a counted event.",
			},
			[]string{"id"},
		),
	}
}

func (p PrometheusAPI) ReportBroken(id string, params ...any) {
	p.broken.WithLabelValues(id).Inc()
	p.Inner.ReportBroken(id, params...)
}

func (p PrometheusAPI) ReportWarning(id string, params ...any) {
	p.warnings.WithLabelValues(id).Inc()
	p.Inner.ReportWarning(id, params...)
}

func (p PrometheusAPI) ReportDebug(msg string, params ...any) {
	p.Inner.ReportDebug(msg, params...)
}

func (p PrometheusAPI) ReportCount(id string, count int64) {
	p.counts.WithLabelValues(id).Set(float64(count))
	p.Inner.ReportCount(id, count)
}
