// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics holds the helper's Prometheus collectors.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
)

// Metrics holds all helper metrics on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Capture relay
	CaptureClients   prometheus.Counter
	PacketsRelayed   prometheus.Counter
	BytesRelayed     prometheus.Counter
	RelayErrors      prometheus.Counter
	ReadErrors       prometheus.Counter
	PcapReceived     prometheus.Gauge
	PcapDropped      prometheus.Gauge
	PcapIfaceDropped prometheus.Gauge

	// Control channel
	ControlConnections prometheus.Counter
	ControlRequests    *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		CaptureClients: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appwall_capture_clients_total",
			Help: "Total number of capture relay clients accepted",
		}),
		PacketsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appwall_capture_packets_relayed_total",
			Help: "Total number of packets sent to capture relay clients",
		}),
		BytesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appwall_capture_bytes_relayed_total",
			Help: "Total captured bytes sent to capture relay clients",
		}),
		RelayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appwall_capture_relay_errors_total",
			Help: "Total number of relay sends that failed and dropped the client",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appwall_capture_read_errors_total",
			Help: "Total number of failed capture reads, excluding timeouts",
		}),
		PcapReceived: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "appwall_pcap_packets_received",
			Help: "Packets received by the capture handle, as last reported",
		}),
		PcapDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "appwall_pcap_packets_dropped",
			Help: "Packets dropped by the capture mechanism, as last reported",
		}),
		PcapIfaceDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "appwall_pcap_packets_if_dropped",
			Help: "Packets dropped by the interface, as last reported",
		}),

		ControlConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appwall_control_connections_total",
			Help: "Total number of control connections accepted",
		}),
		ControlRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appwall_control_requests_total",
			Help: "Control requests by outcome",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		m.CaptureClients,
		m.PacketsRelayed,
		m.BytesRelayed,
		m.RelayErrors,
		m.ReadErrors,
		m.PcapReceived,
		m.PcapDropped,
		m.PcapIfaceDropped,
		m.ControlConnections,
		m.ControlRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ServeListener exposes /metrics on ln until ctx is done.
func (m *Metrics) ServeListener(ctx context.Context, ln net.Listener, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.KindIO, "metrics server")
	}
	return nil
}
