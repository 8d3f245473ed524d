package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AuditWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devicehub_audit_writes_total",
		Help: "Audit entries recorded, by the store that accepted them",
	}, []string{"store"})
	AuditWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devicehub_audit_write_failures_total",
		Help: "Audit store operations that failed during a write",
	}, []string{"store"})
	AuditReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devicehub_audit_reads_total",
		Help: "Audit reads, by serving source and result status",
	}, []string{"source", "status"})
	AuditProbes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devicehub_audit_probes_total",
		Help: "Existence probes of the remote audit table, by result",
	}, []string{"result"})
	DeviceActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devicehub_device_actions_total",
		Help: "Device controller and telemetry actions, by action and outcome",
	}, []string{"action", "outcome"})
	ChatRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devicehub_chat_requests_total",
		Help: "Chat proxy requests, by outcome",
	}, []string{"outcome"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devicehub_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func init() {
	prometheus.MustRegister(
		AuditWrites,
		AuditWriteFailures,
		AuditReads,
		AuditProbes,
		DeviceActions,
		ChatRequests,
		HTTPRequestDuration,
	)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
