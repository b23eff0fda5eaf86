package internaldefs

import (
	mudra "github.com/dimssu/Mudra"
)

// CounterDef maps one engine counter to its exported name.
type CounterDef struct {
	ID   mudra.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to its exported name.
type HistogramDef struct {
	ID   mudra.MetricID
	Name string
	Help string
}

// CounterDefs is the full exported counter table. Order is the exposition
// order.
var CounterDefs = []CounterDef{
	{ID: mudra.MetricIssueSuccess, Name: "mudra_issue_success_total", Help: "Successful token issuances."},
	{ID: mudra.MetricLoginSuccess, Name: "mudra_login_success_total", Help: "Successful login attempts."},
	{ID: mudra.MetricLoginFailure, Name: "mudra_login_failure_total", Help: "Failed login attempts."},
	{ID: mudra.MetricLoginRateLimited, Name: "mudra_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: mudra.MetricRegisterSuccess, Name: "mudra_register_success_total", Help: "Successful registrations."},
	{ID: mudra.MetricRegisterFailure, Name: "mudra_register_failure_total", Help: "Failed registrations."},
	{ID: mudra.MetricRegisterRateLimited, Name: "mudra_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: mudra.MetricRefreshSuccess, Name: "mudra_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: mudra.MetricRefreshFailure, Name: "mudra_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: mudra.MetricRefreshReuseDetected, Name: "mudra_refresh_reuse_detected_total", Help: "Refresh token reuses detected."},
	{ID: mudra.MetricRefreshRateLimited, Name: "mudra_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: mudra.MetricGateSuccess, Name: "mudra_gate_success_total", Help: "Gate checks that admitted the request."},
	{ID: mudra.MetricGateFailure, Name: "mudra_gate_failure_total", Help: "Gate checks that rejected the request."},
	{ID: mudra.MetricRevokeAll, Name: "mudra_revoke_all_total", Help: "Revoke-all operations."},
	{ID: mudra.MetricRoleCacheHit, Name: "mudra_role_cache_hit_total", Help: "Role resolutions served from cache."},
	{ID: mudra.MetricRoleCacheMiss, Name: "mudra_role_cache_miss_total", Help: "Role resolutions read through to the directory."},
	{ID: mudra.MetricRateLimitHit, Name: "mudra_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: mudra.MetricLimiterFailOpen, Name: "mudra_limiter_fail_open_total", Help: "Limiter checks permitted in degraded mode."},
}

// HistogramDefs is the exported histogram table.
var HistogramDefs = []HistogramDef{
	{ID: mudra.MetricGateLatency, Name: "mudra_gate_latency_seconds", Help: "Gate check latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's fixed
// latency buckets. The last bucket is unbounded.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundLabels are the Prometheus "le" label values, including the
// +Inf terminal bucket.
var HistogramBoundLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix gives instrument-name-safe forms of the bounds for
// exporters that encode the bound in the metric name.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// AuditDroppedName is the exported name of the audit drop counter, which
// lives outside the engine's metric table.
const AuditDroppedName = "mudra_audit_dropped_total"

// AuditDroppedHelp documents the audit drop counter.
const AuditDroppedHelp = "Audit events dropped by dispatcher backpressure."

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
