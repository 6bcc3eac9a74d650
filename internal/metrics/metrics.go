// Package metrics defines the Prometheus metrics of the sharing server.
// Metrics register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gophshare"

// RPCRequestsTotal counts finished RPCs.
// Labels:
//   - method: full gRPC method name
//   - code: gRPC status code name
var RPCRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "Total number of handled RPCs, by method and status code.",
	},
	[]string{"method", "code"},
)

// RPCDuration measures handler latency.
var RPCDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "Duration of RPC handling.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// AuthzDecisionsTotal counts access-guard outcomes.
// Labels:
//   - kind: "account" or "workspace"
//   - decision: "owner", "allow", "not_member" or "insufficient"
var AuthzDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authz_decisions_total",
		Help:      "Total number of access-guard decisions.",
	},
	[]string{"kind", "decision"},
)

// InvitationsTotal counts invitation lifecycle events.
// Labels:
//   - kind: "account" or "workspace"
//   - outcome: "created", "role_updated", "accepted" or "declined"
var InvitationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitations_total",
		Help:      "Total number of invitation events, by outcome.",
	},
	[]string{"kind", "outcome"},
)

// CascadeRows counts account-level rows touched by workspace cascades.
// Label:
//   - op: "create", "propagate" or "delete"
var CascadeRows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_rows_total",
		Help:      "Account-level sharing rows written or removed by cascades.",
	},
	[]string{"op"},
)

// MailDispatchTotal counts outbound mail attempts.
// Label:
//   - result: "queued" or "failed"
var MailDispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_dispatch_total",
		Help:      "Outbound mail attempts, by result.",
	},
	[]string{"result"},
)
