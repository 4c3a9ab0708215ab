// Package prometheus exposes the auth manager's counters and latency
// histogram as a prometheus.Collector.
//
// Counters are named streamauth_*_total. The histogram is
// streamauth_authenticate_latency_seconds. Nothing is registered globally;
// callers either register the Collector themselves or mount Handler.
package prometheus
