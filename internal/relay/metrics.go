package relay

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the relay's instrumentation. Each relay instance owns a
// private registry so tests can run several relays side by side.
type metrics struct {
	received    prometheus.Counter
	delivered   prometheus.Counter
	malformed   prometheus.Counter
	slowDrops   prometheus.Counter
	subscribers prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statemachine_relay_events_received_total",
			Help: "Events accepted from the broadcast ingress",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statemachine_relay_events_delivered_total",
			Help: "Event deliveries enqueued to subscriber sessions",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statemachine_relay_malformed_frames_total",
			Help: "Ingress frames dropped because they failed to decode",
		}),
		slowDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statemachine_relay_slow_consumer_drops_total",
			Help: "Sessions dropped because their outbound queue overflowed",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statemachine_relay_subscribers",
			Help: "Currently connected subscriber sessions",
		}),
	}
	reg.MustRegister(m.received, m.delivered, m.malformed, m.slowDrops, m.subscribers)
	return m
}
