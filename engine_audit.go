package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/credential"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginChallengeIssued     = "login_challenge_issued"
	auditEventSessionRefreshed         = "session_refreshed"
	auditEventPasswordRehashed         = "password_rehashed"
	auditEventSecondFactorSuccess      = "second_factor_success"
	auditEventSecondFactorFailure      = "second_factor_failure"
	auditEventTOTPEnrollmentStarted    = "totp_enrollment_started"
	auditEventTOTPEnabled              = "totp_enabled"
	auditEventTOTPFailure              = "totp_failure"
	auditEventTOTPReplayRejected       = "totp_replay_rejected"
	auditEventRecoveryCodesGenerated   = "recovery_codes_generated"
	auditEventRecoveryCodeUsed         = "recovery_code_used"
	auditEventRecoveryCodeFailed       = "recovery_code_failed"
	auditEventEmailOTPEnabled          = "email_otp_enabled"
	auditEventEmailOTPDisabled         = "email_otp_disabled"
	auditEventEmailOTPSent             = "email_otp_sent"
	auditEventEmailOTPDispatchFailed   = "email_otp_dispatch_failed"
	auditEventEmailOTPFailure          = "email_otp_failure"
	auditEventTwoFactorDisabled        = "two_factor_disabled"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
)

// AuditErrorCode is the error field of an audit event. Unlike [Reason] it
// keeps the specific second-factor failure kind.
type AuditErrorCode string

const (
	auditErrTokenMalformed          AuditErrorCode = "token_malformed"
	auditErrTokenBadSignature       AuditErrorCode = "token_bad_signature"
	auditErrTokenExpired            AuditErrorCode = "token_expired"
	auditErrTokenWrongStage         AuditErrorCode = "token_wrong_stage"
	auditErrUserNotFound            AuditErrorCode = "user_not_found"
	auditErrInvalidCredentials      AuditErrorCode = "invalid_credentials"
	auditErrEmailUnverified         AuditErrorCode = "email_unverified"
	auditErrSecondFactorNotEnrolled AuditErrorCode = "second_factor_not_enrolled"
	auditErrSecondFactorMismatch    AuditErrorCode = "second_factor_mismatch"
	auditErrSecondFactorExpired     AuditErrorCode = "second_factor_expired"
	auditErrPasswordPolicy          AuditErrorCode = "password_policy"
	auditErrLinkInvalid             AuditErrorCode = "link_invalid"
	auditErrDispatchFailed          AuditErrorCode = "dispatch_failed"
	auditErrUnavailable             AuditErrorCode = "backend_unavailable"
	auditErrInternal                AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	method Method,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if method != 0 {
		event.Method = method.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenBadSignature):
		return auditErrTokenBadSignature
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrTokenWrongStage):
		return auditErrTokenWrongStage
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailUnverified):
		return auditErrEmailUnverified
	case errors.Is(err, ErrSecondFactorNotEnrolled):
		return auditErrSecondFactorNotEnrolled
	case errors.Is(err, ErrSecondFactorMismatch):
		return auditErrSecondFactorMismatch
	case errors.Is(err, ErrSecondFactorExpired):
		return auditErrSecondFactorExpired
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordResetInvalid),
		errors.Is(err, ErrEmailVerificationInvalid):
		return auditErrLinkInvalid
	case errors.Is(err, ErrDispatchFailed):
		return auditErrDispatchFailed
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, credential.ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func auditTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
