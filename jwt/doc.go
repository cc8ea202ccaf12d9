// Package jwt issues and verifies the signed session tokens of the auth core.
//
// Verification failures are classified into exactly three kinds:
// [ErrMalformed], [ErrBadSignature] and [ErrExpired]. Expired tokens come back
// as an [*ExpiredError] carrying the original expiry so callers can offer a
// re-authentication flow instead of a generic rejection.
//
// Signing keys are addressed by kid. Adding a new key to VerifyKeys and
// switching KeyID lets the signing key change without touching call sites.
package jwt
