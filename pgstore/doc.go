// Package pgstore provides PostgreSQL-backed implementations of the
// engine's TokenStore and Directory interfaces, plus embedded schema
// migrations. It is the durable half of the credential engine; the session
// cache in package session is the volatile half.
package pgstore
