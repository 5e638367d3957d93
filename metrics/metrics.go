// Package metrics exposes a Prometheus scrape endpoint for the process.
// Counters are registered through the VictoriaMetrics metrics library's
// default set; this package only provides the HTTP server that publishes
// them.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	vmmetrics "github.com/VictoriaMetrics/metrics"
)

// MetricsServer serves /metrics on its own listener, separate from the API.
type MetricsServer struct {
	name string
	srv  *http.Server
}

// New creates a metrics server for the given service name and listen address.
func New(name, addr string) (*MetricsServer, error) {
	if addr == "" {
		return nil, fmt.Errorf("metrics server requires a listen address")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmmetrics.WritePrometheus(w, true)
	})

	return &MetricsServer{
		name: name,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
