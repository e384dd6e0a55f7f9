package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ChatRequests  prometheus.Counter
	ChatFailures  prometheus.Counter
	StreamChunks  prometheus.Counter
	BridgeInvokes prometheus.Counter
	BridgeErrors  prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ChatRequests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "deskmate",
				Name:      "chat_requests_total",
				Help:      "Total chat completions dispatched to providers",
			}),
			ChatFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "deskmate",
				Name:      "chat_failures_total",
				Help:      "Total chat completions that returned a failure result",
			}),
			StreamChunks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "deskmate",
				Name:      "stream_chunks_total",
				Help:      "Total streamed chat chunks delivered over the bridge",
			}),
			BridgeInvokes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "deskmate",
				Name:      "bridge_invokes_total",
				Help:      "Total request/response calls handled by the bridge",
			}),
			BridgeErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "deskmate",
				Name:      "bridge_errors_total",
				Help:      "Total bridge calls that ended in an error reply",
			}),
		}
		prometheus.MustRegister(global.ChatRequests, global.ChatFailures, global.StreamChunks, global.BridgeInvokes, global.BridgeErrors)
	})
	return global
}
