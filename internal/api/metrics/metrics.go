// Package metrics defines and registers all custom Prometheus metrics for the
// desk agent. It is the single source of truth for metric names, labels, and
// help strings; metrics register with the default registry at import time and
// are served by the status server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deskd"

// ── Realtime connection metrics ───────────────────────────────────────────────

// ConnectionState is 1 while the realtime socket is connected, 0 otherwise.
var ConnectionState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connected",
		Help:      "Whether the realtime connection is currently established (1/0).",
	},
)

// FramesReceivedTotal counts inbound frames that parsed successfully.
// Label:
//   - type: the frame discriminator (e.g. "notification", "new_message")
var FramesReceivedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_frames_received_total",
		Help:      "Total number of inbound realtime frames, by frame type.",
	},
	[]string{"type"},
)

// FramesDroppedTotal counts frames discarded without dispatch.
// Label:
//   - reason: "malformed" (unparseable inbound) or "not_connected" (outbound
//     send attempted while disconnected)
var FramesDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_frames_dropped_total",
		Help:      "Total number of realtime frames dropped, by reason.",
	},
	[]string{"reason"},
)

// ReconnectsTotal counts scheduled reconnection attempts after abnormal closes.
var ReconnectsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_reconnects_total",
		Help:      "Total number of reconnection attempts scheduled.",
	},
)

// ── Notification feed metrics ─────────────────────────────────────────────────

// PollsTotal counts per-source refresh outcomes.
// Labels:
//   - source: "system", "task" or "approval"
//   - result: "ok", "unauthorized" or "error"
var PollsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_polls_total",
		Help:      "Total number of notification source polls, by source and result.",
	},
	[]string{"source", "result"},
)

// UnreadNotifications tracks the merged unread count, pending deltas included.
var UnreadNotifications = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notifications_unread",
		Help:      "Current number of unread notifications across all feeds.",
	},
)

// MarkReadTotal counts mark-as-read calls issued to the backend.
// Label:
//   - source: the feed the item belongs to
var MarkReadTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_mark_read_total",
		Help:      "Total number of mark-as-read calls issued, by source.",
	},
	[]string{"source"},
)

// ── Side-channel metrics ──────────────────────────────────────────────────────

// AlertsTotal counts side-channel delivery attempts.
// Label:
//   - result: "delivered" or "skipped" (channel locked)
var AlertsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Total number of desktop alert attempts, by result.",
	},
	[]string{"result"},
)
