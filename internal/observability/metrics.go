package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat sync service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active room websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages stored, by message type.",
		},
		[]string{"type"},
	)
	ledgerFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_room_ledger_failures_total",
			Help: "Room activity updates that failed after a message was stored.",
		},
	)
	aiTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ai_triggers_total",
			Help: "AI mention trigger outcomes.",
		},
		[]string{"outcome"},
	)
	pollFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_poll_fetches_total",
			Help: "Polling delivery fetches, by result.",
		},
		[]string{"result"},
	)
	readFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_read_fallbacks_total",
			Help: "Read operations that degraded to an empty result after a store error.",
		},
		[]string{"operation"},
	)
	eventPublishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_event_publish_errors_total",
			Help: "Total number of event publish errors, by sink.",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		messagesSentTotal,
		ledgerFailuresTotal,
		aiTriggersTotal,
		pollFetchesTotal,
		readFallbacksTotal,
		eventPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncMessageSent(msgType string) {
	messagesSentTotal.WithLabelValues(msgType).Inc()
}

func IncLedgerFailure() {
	ledgerFailuresTotal.Inc()
}

func IncAITrigger(outcome string) {
	aiTriggersTotal.WithLabelValues(outcome).Inc()
}

func IncPollFetch(result string) {
	pollFetchesTotal.WithLabelValues(result).Inc()
}

func IncReadFallback(operation string) {
	readFallbacksTotal.WithLabelValues(operation).Inc()
}

func IncPublishError(sink string) {
	eventPublishErrorsTotal.WithLabelValues(sink).Inc()
}
