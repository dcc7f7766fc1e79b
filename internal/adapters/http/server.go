// Package http exposes the relay's health surface: a liveness probe, the
// synchronous status query used for readiness checks, and Prometheus
// metrics. It is deliberately tiny; event delivery never rides on HTTP.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/relay"
)

// StatusSource is the slice of the relay the handler needs.
type StatusSource interface {
	Status() relay.Status
}

// StatusResponse is the wire shape of the health query.
type StatusResponse struct {
	Status          string `json:"status"`
	SubscriberCount int    `json:"subscriber_count"`
}

// NewHandler builds the HTTP handler for one relay instance.
func NewHandler(src StatusSource, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		st := src.Status()
		resp := StatusResponse{
			Status:          "listening",
			SubscriberCount: st.SubscriberCount,
		}
		if !st.Listening {
			resp.Status = "shutdown"
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, "encode status", http.StatusInternalServerError)
		}
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
