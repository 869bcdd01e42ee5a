package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Name:      "jobs_total",
		Help:      "Extraction jobs by terminal status.",
	}, []string{"status"})

	tierAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Name:      "ocr_tier_attempts_total",
		Help:      "Recognition attempts by tier and outcome.",
	}, []string{"tier", "outcome"})

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Name:      "cache_requests_total",
		Help:      "Result cache lookups by outcome.",
	}, []string{"outcome"})

	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Name:      "webhook_deliveries_total",
		Help:      "Webhook delivery attempts by outcome.",
	}, []string{"outcome"})

	extractionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docuflow",
		Name:      "extraction_retries_total",
		Help:      "Re-extractions triggered by validation failures.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docuflow",
		Name:      "job_duration_seconds",
		Help:      "End-to-end job processing time.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

func IncJob(status string)            { jobsTotal.WithLabelValues(status).Inc() }
func IncTierAttempt(tier, out string) { tierAttempts.WithLabelValues(tier, out).Inc() }
func IncCacheRequest(outcome string)  { cacheRequests.WithLabelValues(outcome).Inc() }
func IncWebhookDelivery(out string)   { webhookDeliveries.WithLabelValues(out).Inc() }
func IncExtractionRetry()             { extractionRetries.Inc() }
func ObserveJobDuration(secs float64) { jobDuration.Observe(secs) }
