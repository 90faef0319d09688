package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	roomsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rooms_created_total",
			Help: "Rooms created by a first join",
		},
	)

	roomsTornDownTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rooms_torn_down_total",
			Help: "Rooms deleted after the empty-room grace period",
		},
	)

	joinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_joins_total",
			Help: "Join attempts by outcome",
		},
		[]string{"outcome"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Connections currently seated in a room",
		},
	)

	storeFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_store_fallbacks_total",
			Help: "Switches from the durable store to the volatile store",
		},
	)

	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func RoomCreated() {
	roomsCreatedTotal.Inc()
}

func RoomTornDown() {
	roomsTornDownTotal.Inc()
}

// RecordJoin counts a join attempt; outcome is "joined", "queued" or an error code.
func RecordJoin(outcome string) {
	joinsTotal.WithLabelValues(outcome).Inc()
}

func SessionOpened() {
	activeSessions.Inc()
}

func SessionClosed() {
	activeSessions.Dec()
}

func StoreFallback() {
	storeFallbacksTotal.Inc()
}

func RecordMessage(outcome string) {
	messagesTotal.WithLabelValues(outcome).Inc()
}
