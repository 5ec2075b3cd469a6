package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(hubSubscribers, hubDeliveriesTotal, relayMessagesTotal) }

var (
	hubSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscribers",
			Help: "Live subscribers registered with the notification hub.",
		},
	)

	hubDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_deliveries_total",
			Help: "Event deliveries to subscribers, labeled by result.",
		},
		[]string{"result"}, // 'ok', 'failed'
	)

	relayMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_relay_messages_total",
			Help: "Progress events crossing the Redis relay, labeled by direction and result.",
		},
		[]string{"direction", "result"}, // direction: 'publish', 'receive'
	)
)

func SetHubSubscribers(n int) { hubSubscribers.Set(float64(n)) }

func IncDelivery(ok bool) {
	if ok {
		hubDeliveriesTotal.WithLabelValues("ok").Inc()
		return
	}
	hubDeliveriesTotal.WithLabelValues("failed").Inc()
}

func IncRelay(direction, result string) {
	relayMessagesTotal.WithLabelValues(norm(direction), norm(result)).Inc()
}
