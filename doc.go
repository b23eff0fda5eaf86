// Package mudra is the token lifecycle and session-security engine for a
// multi-tenant user directory: short-lived JWT access tokens, long-lived
// rotating refresh tokens with stolen-token detection, a Redis-backed
// session and authorization cache, and a fixed-window rate limiter for the
// credential endpoints.
//
// The package is the public surface. An [Engine] is assembled through
// [Builder] with explicit collaborators — a Redis client, a durable
// [TokenStore], a user [Directory], and a [PasswordHasher] — and is safe
// for concurrent use after Build. HTTP transport, request validation, and
// identity-provider token verification stay with the caller; the engine
// exposes Issue, Rotate, RevokeAll, Authenticate, ResolveRole, and Allow.
//
// # Trust boundaries
//
//   - Refresh tokens are persisted only as SHA-256 digests; a raw token
//     never reaches the durable store.
//   - The session cache is never the sole source of an authorization
//     decision: a miss falls back to the durable store, never to a
//     fail-open grant. The only fail-open path in the engine is the rate
//     limiter during a counter-backend outage, and that path is logged
//     and audited as a degraded-mode event.
//   - Authentication failures are uniform: callers cannot distinguish an
//     unknown account from a wrong password.
package mudra
