// Package metrics holds the prometheus collectors of the producer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "producer_operations_total",
	Help: "Total number of coordinator operations by kind, operation and outcome",
}, []string{"kind", "op", "outcome"})

var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "producer_operation_duration_seconds",
	Help: "Duration of coordinator operations",
}, []string{"kind", "op"})

var CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "producer_captures_total",
	Help: "Total number of device captures by kind",
}, []string{"kind"})

var DeferredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "producer_deferred_total",
	Help: "Total number of captures parked until the transport is bound",
}, []string{"kind"})

var DeviceRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "producer_device_refreshes_total",
	Help: "Total number of device enumerations by phase",
}, []string{"phase"})

var SenderState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "producer_sender_state",
	Help: "Current sender state by kind (0 idle, 1 starting, 2 running, 3 paused, 4 stopping)",
}, []string{"kind"})

var EffectBindings = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "producer_effect_bindings",
	Help: "Number of live effect bindings",
})

var TransportBound = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "producer_transport_bound",
	Help: "1 when the outbound transport is connected",
})

var CapturedPacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "producer_captured_packets_total",
	Help: "Total number of RTP packets read from capture sources",
}, []string{"device"})

var RTCPPacketsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "producer_rtcp_packets_received_total",
	Help: "Total number of RTCP packets received from the remote side by kind",
}, []string{"kind"})

var KeyframeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "producer_keyframe_requests_total",
	Help: "Total number of keyframe requests forwarded to capture sources",
}, []string{"kind"})

var WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "producer_websocket_clients",
	Help: "Number of connected state stream clients",
})

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeDeferred = "deferred"
	OutcomeDenied   = "denied"
	OutcomeStale    = "stale"
)
