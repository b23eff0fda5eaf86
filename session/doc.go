// Package session is the Redis-backed session cache.
//
// It holds exactly two ephemeral projections per user: the currently valid
// access token (the mechanism that makes logout and revocation effective
// before a token's natural expiry) and a trimmed user record used to avoid
// a directory read on every authorized request. Entries expire by TTL and
// are actively invalidated on logout, role change, and deletion.
package session
