// Package metrics holds the prometheus collectors for certification
// activity. They are registered on the default registry and served by the
// admin API on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	certifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalcert",
		Name:      "certify_total",
		Help:      "Certify calls by engine and outcome.",
	}, []string{"engine", "outcome"})

	certifyDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "legalcert",
		Name:      "certify_duration_seconds",
		Help:      "Time to build, sign and broadcast a certification.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"engine"})

	statusTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalcert",
		Name:      "status_total",
		Help:      "Status snapshots by engine and status.",
	}, []string{"engine", "status"})

	statusErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalcert",
		Name:      "status_errors_total",
		Help:      "Failed status queries by engine.",
	}, []string{"engine"})

	watching = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "legalcert",
		Name:      "watched_certifications",
		Help:      "Certifications the confirmer is polling.",
	})
)

func init() {
	prometheus.MustRegister(certifyTotal, certifyDuration, statusTotal, statusErrors, watching)
}

func ObserveCertify(engine string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	certifyTotal.WithLabelValues(engine, outcome).Inc()
	certifyDuration.WithLabelValues(engine).Observe(took.Seconds())
}

func ObserveStatus(engine string, status string) {
	statusTotal.WithLabelValues(engine, status).Inc()
}

func ObserveStatusError(engine string) {
	statusErrors.WithLabelValues(engine).Inc()
}

func SetWatching(n int) {
	watching.Set(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
