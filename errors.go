package authcore

import "errors"

var (
	// ErrTokenMalformed is returned for tokens that cannot be parsed or lack required claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenBadSignature is returned when the token signature does not verify.
	ErrTokenBadSignature = errors.New("token signature invalid")
	// ErrTokenExpired is returned for well-formed, correctly signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenWrongStage is returned when a token is presented where its stage (session, challenge or refresh) is not accepted.
	ErrTokenWrongStage = errors.New("token stage not accepted here")
	// ErrRefreshTooEarly is returned when a session is refreshed before its refresh window opens.
	ErrRefreshTooEarly = errors.New("session not yet refreshable")

	// ErrUserNotFound is returned when no credential record matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps credential store transport failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrDispatchFailed is returned when the mail sender rejects a message.
	ErrDispatchFailed = errors.New("message dispatch failed")

	// ErrSecondFactorNotEnrolled means the submitted method is not enabled for the user.
	ErrSecondFactorNotEnrolled = errors.New("second factor not enrolled")
	// ErrSecondFactorMismatch means the submitted code did not match.
	ErrSecondFactorMismatch = errors.New("second factor mismatch")
	// ErrSecondFactorExpired means no code is pending or the pending code expired.
	ErrSecondFactorExpired = errors.New("second factor expired")
	// ErrVerificationFailed is the outward form of the three second-factor kinds above.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrSecondFactorRequired is returned by flows that need a completed challenge first.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrUnknownMethod is returned for an unrecognized second-factor method tag.
	ErrUnknownMethod = errors.New("unknown second factor method")

	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrEmailUnverified           = errors.New("email address not verified")
	ErrPasswordPolicy            = errors.New("password policy violation")
	ErrPasswordResetDisabled     = errors.New("password reset disabled")
	ErrPasswordResetInvalid      = errors.New("password reset link invalid")
	ErrEmailVerificationDisabled = errors.New("email verification disabled")
	ErrEmailVerificationInvalid  = errors.New("email verification link invalid")

	// ErrEngineNotReady is returned when a required collaborator is missing.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Reason is a stable, transport-safe code describing why an operation failed.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonTokenMalformed       Reason = "token_malformed"
	ReasonTokenBadSignature    Reason = "token_bad_signature"
	ReasonTokenExpired         Reason = "token_expired"
	ReasonTokenWrongStage      Reason = "token_wrong_stage"
	ReasonRefreshTooEarly      Reason = "refresh_too_early"
	ReasonUserNotFound         Reason = "user_not_found"
	ReasonStoreUnavailable     Reason = "store_unavailable"
	ReasonDispatchFailed       Reason = "dispatch_failed"
	ReasonVerificationFailed   Reason = "verification_failed"
	ReasonSecondFactorRequired Reason = "second_factor_required"
	ReasonUnknownMethod        Reason = "unknown_method"
	ReasonInvalidCredentials   Reason = "invalid_credentials"
	ReasonEmailUnverified      Reason = "email_unverified"
	ReasonPasswordPolicy       Reason = "password_policy"
	ReasonLinkInvalid          Reason = "link_invalid"
	ReasonFeatureDisabled      Reason = "feature_disabled"
	ReasonInternal             Reason = "internal_error"
)

// ReasonFor maps err to its Reason. The three second-factor kinds all map to
// ReasonVerificationFailed.
func ReasonFor(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	switch {
	case errors.Is(err, ErrTokenExpired):
		return ReasonTokenExpired
	case errors.Is(err, ErrTokenBadSignature):
		return ReasonTokenBadSignature
	case errors.Is(err, ErrTokenMalformed):
		return ReasonTokenMalformed
	case errors.Is(err, ErrTokenWrongStage):
		return ReasonTokenWrongStage
	case errors.Is(err, ErrRefreshTooEarly):
		return ReasonRefreshTooEarly
	case errors.Is(err, ErrUserNotFound):
		return ReasonUserNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return ReasonStoreUnavailable
	case errors.Is(err, ErrDispatchFailed):
		return ReasonDispatchFailed
	case errors.Is(err, ErrSecondFactorNotEnrolled),
		errors.Is(err, ErrSecondFactorMismatch),
		errors.Is(err, ErrSecondFactorExpired),
		errors.Is(err, ErrVerificationFailed):
		return ReasonVerificationFailed
	case errors.Is(err, ErrSecondFactorRequired):
		return ReasonSecondFactorRequired
	case errors.Is(err, ErrUnknownMethod):
		return ReasonUnknownMethod
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, ErrEmailUnverified):
		return ReasonEmailUnverified
	case errors.Is(err, ErrPasswordPolicy):
		return ReasonPasswordPolicy
	case errors.Is(err, ErrPasswordResetInvalid),
		errors.Is(err, ErrEmailVerificationInvalid):
		return ReasonLinkInvalid
	case errors.Is(err, ErrPasswordResetDisabled),
		errors.Is(err, ErrEmailVerificationDisabled):
		return ReasonFeatureDisabled
	default:
		return ReasonInternal
	}
}

// PublicError returns the error a transport layer may show: the specific
// second-factor kinds become ErrVerificationFailed, everything else passes
// through unchanged.
func PublicError(err error) error {
	if isSecondFactorFailure(err) {
		return ErrVerificationFailed
	}
	return err
}

func isSecondFactorFailure(err error) bool {
	return errors.Is(err, ErrSecondFactorNotEnrolled) ||
		errors.Is(err, ErrSecondFactorMismatch) ||
		errors.Is(err, ErrSecondFactorExpired)
}
