// Package rate implements the fixed-window request limiter protecting the
// credential endpoints.
//
// Counters live in Redis keyed by (endpoint class, client IP) and expire at
// the end of their window. Availability of the credential surface outranks
// strict enforcement: when the counter backend is unreachable the limiter
// reports a degraded, permitted decision rather than blocking all traffic.
package rate
