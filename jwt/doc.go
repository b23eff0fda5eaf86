// Package jwt mints and verifies the signed access/refresh token pair used
// by the Mudra engine.
//
// Both token kinds share one claim set distinguished by a "typ" claim, so a
// refresh token can never pass where an access token is expected. Supported
// algorithms are Ed25519 (default) and HS256. Verification fails closed:
// signature, expiry, issuer, and kind are all required to match.
package jwt
