// Package authcore is a session and two-factor authentication core: signed
// session tokens, TOTP, email one-time codes and recovery codes, and the
// login flows built on them.
//
// An [Engine] is assembled once through [Builder] and is safe for concurrent
// use. It owns no user data; records live behind a [credential.Store] and
// outbound messages go through a [mail.Sender].
//
// # Verification results
//
// Operations return sentinel errors. Callers map them to transport responses
// with [ReasonFor] and [PublicError]. The specific second-factor failure
// kinds (not enrolled, mismatch, expired) collapse to [ErrVerificationFailed]
// at that boundary, while logs and audit events keep the kind.
//
// # Single use
//
// Email codes, recovery codes, reset and verification links, and accepted
// TOTP time steps are consumed with one conditional store update
// ([credential.Store.UpdateUserFieldsIf]), never a read followed by a write.
// Two concurrent submissions of the same code cannot both succeed.
package authcore
