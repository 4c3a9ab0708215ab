package internaldefs

import (
	"github.com/MrEthical07/streamauth"
)

// CounterDef names one monotonic counter.
type CounterDef struct {
	ID   streamauth.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   streamauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: streamauth.MetricLoginSuccess, Name: "streamauth_login_success_total", Help: "Successful logins."},
	{ID: streamauth.MetricLoginFailure, Name: "streamauth_login_failure_total", Help: "Rejected logins."},
	{ID: streamauth.MetricLoginRateLimited, Name: "streamauth_login_rate_limited_total", Help: "Logins refused by the attempt limiter."},
	{ID: streamauth.MetricAuthenticateSuccess, Name: "streamauth_authenticate_success_total", Help: "Requests authenticated."},
	{ID: streamauth.MetricAuthenticateFailure, Name: "streamauth_authenticate_failure_total", Help: "Requests that failed authentication."},
	{ID: streamauth.MetricCacheHit, Name: "streamauth_cache_hit_total", Help: "Authenticate calls served from the token cache."},
	{ID: streamauth.MetricCacheMiss, Name: "streamauth_cache_miss_total", Help: "Authenticate calls that verified the token."},
	{ID: streamauth.MetricRefreshSuccess, Name: "streamauth_refresh_success_total", Help: "Access tokens issued from a refresh token."},
	{ID: streamauth.MetricRefreshFailure, Name: "streamauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: streamauth.MetricTokenRevoked, Name: "streamauth_token_revoked_total", Help: "Tokens added to the blacklist."},
	{ID: streamauth.MetricLogout, Name: "streamauth_logout_total", Help: "Logouts."},
	{ID: streamauth.MetricForceLogout, Name: "streamauth_force_logout_total", Help: "Sessions revoked by force logout."},
	{ID: streamauth.MetricBlacklistFailClosed, Name: "streamauth_blacklist_fail_closed_total", Help: "Tokens rejected because the blacklist was unreachable."},
	{ID: streamauth.MetricSessionStoreError, Name: "streamauth_session_store_error_total", Help: "Session store failures."},
	{ID: streamauth.MetricUserStoreError, Name: "streamauth_user_store_error_total", Help: "User store failures."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: streamauth.MetricAuthenticateLatency, Name: "streamauth_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDropped is the counter for audit events lost to a full buffer.
const (
	AuditDroppedName = "streamauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// HistogramBounds are the upper bounds in seconds of the first seven
// buckets. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native
// histograms.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
