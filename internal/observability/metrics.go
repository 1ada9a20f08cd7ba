// Package observability exposes ingestion metrics and the health
// endpoint shared by the binaries.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingestion pipeline counters.
type Metrics struct {
	LinesRead       prometheus.Counter
	MessagesParsed  prometheus.Counter
	ParseFailures   prometheus.Counter
	MessagesStored  prometheus.Counter
	InvalidMessages prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers the pipeline counters on a dedicated
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixlog_lines_read_total",
			Help: "Raw log lines read from all sources",
		}),
		MessagesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixlog_messages_parsed_total",
			Help: "Log lines successfully parsed into messages",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixlog_parse_failures_total",
			Help: "Log lines with no recoverable FIX payload",
		}),
		MessagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixlog_messages_stored_total",
			Help: "Messages persisted to the store",
		}),
		InvalidMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixlog_invalid_messages_total",
			Help: "Parsed messages with validation findings",
		}),
		registry: registry,
	}

	registry.MustRegister(m.LinesRead, m.MessagesParsed, m.ParseFailures,
		m.MessagesStored, m.InvalidMessages)

	return m
}

// Handler serves the metrics in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
