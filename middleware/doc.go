// Package middleware exposes net/http guards built on authcore.Engine.
//
// # Guards
//
//   - [Guard] admits fully authenticated sessions.
//   - [RequireChallenge] admits requests that still owe a second factor.
//   - [RequireVerifiedEmail] is Guard plus a verified address.
//
// Each guard reads the Authorization bearer token, calls Engine.Authenticate
// and stores the result in the request context ([AuthResultFromContext]).
// Expired tokens get a 401 with body "token_expired" and the original expiry
// in [ExpiresAtHeader]; every other token failure is a plain "unauthorized".
//
// The package translates HTTP semantics into Engine calls and makes no
// authentication decisions of its own.
package middleware
