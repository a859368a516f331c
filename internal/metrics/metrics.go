// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OffersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapable_offers_created_total",
		Help: "Offers stored successfully.",
	})

	OfferDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapable_offer_decisions_total",
		Help: "Offer decisions applied, by decision.",
	}, []string{"decision"})

	OfferDecisionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapable_offer_decision_conflicts_total",
		Help: "Responses rejected because the offer was already decided.",
	})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapable_notification_failures_total",
		Help: "Offer notifications that could not be handed off, by stage.",
	}, []string{"stage"})

	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapable_event_publish_failures_total",
		Help: "Lifecycle events that failed to publish, by subject.",
	}, []string{"subject"})

	EmailsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapable_emails_delivered_total",
		Help: "Emails processed by the delivery worker, by template and result.",
	}, []string{"template", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapable_http_requests_total",
		Help: "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapable_http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
