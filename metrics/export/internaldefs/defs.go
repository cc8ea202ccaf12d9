package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricAuthenticateSuccess, Name: "authcore_authenticate_success_total", Help: "Tokens that authenticated fully."},
	{ID: authcore.MetricAuthenticateFailure, Name: "authcore_authenticate_failure_total", Help: "Tokens rejected as malformed, badly signed or naming an unknown user."},
	{ID: authcore.MetricTokenExpired, Name: "authcore_token_expired_total", Help: "Tokens rejected as expired."},
	{ID: authcore.MetricSecondFactorRequired, Name: "authcore_second_factor_required_total", Help: "Requests that still owe a second factor."},
	{ID: authcore.MetricSecondFactorSuccess, Name: "authcore_second_factor_success_total", Help: "Completed second-factor checks."},
	{ID: authcore.MetricSecondFactorFailure, Name: "authcore_second_factor_failure_total", Help: "Failed second-factor checks."},
	{ID: authcore.MetricTOTPEnrollmentStarted, Name: "authcore_totp_enrollment_started_total", Help: "Pending TOTP secrets generated."},
	{ID: authcore.MetricTOTPEnabled, Name: "authcore_totp_enabled_total", Help: "TOTP enrollments confirmed."},
	{ID: authcore.MetricTOTPSuccess, Name: "authcore_totp_success_total", Help: "Accepted TOTP codes."},
	{ID: authcore.MetricTOTPFailure, Name: "authcore_totp_failure_total", Help: "Rejected TOTP codes."},
	{ID: authcore.MetricTOTPReplayRejected, Name: "authcore_totp_replay_rejected_total", Help: "TOTP codes rejected for reusing a time step."},
	{ID: authcore.MetricRecoveryCodesGenerated, Name: "authcore_recovery_codes_generated_total", Help: "Recovery code batches generated."},
	{ID: authcore.MetricRecoveryCodeUsed, Name: "authcore_recovery_code_used_total", Help: "Recovery codes consumed."},
	{ID: authcore.MetricRecoveryCodeFailed, Name: "authcore_recovery_code_failed_total", Help: "Rejected recovery codes."},
	{ID: authcore.MetricEmailOTPSent, Name: "authcore_email_otp_sent_total", Help: "Email one-time codes sent."},
	{ID: authcore.MetricEmailOTPDispatchFailed, Name: "authcore_email_otp_dispatch_failed_total", Help: "Email one-time codes the mailer failed to send."},
	{ID: authcore.MetricEmailOTPSuccess, Name: "authcore_email_otp_success_total", Help: "Accepted email one-time codes."},
	{ID: authcore.MetricEmailOTPFailure, Name: "authcore_email_otp_failure_total", Help: "Rejected email one-time codes."},
	{ID: authcore.MetricTwoFactorDisabled, Name: "authcore_two_factor_disabled_total", Help: "Users who had every second factor removed."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Logins that issued a session token."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed logins."},
	{ID: authcore.MetricLoginChallengeIssued, Name: "authcore_login_challenge_issued_total", Help: "Logins that issued a challenge token."},
	{ID: authcore.MetricSessionRefreshed, Name: "authcore_session_refreshed_total", Help: "Session tokens refreshed."},
	{ID: authcore.MetricPasswordRehashed, Name: "authcore_password_rehashed_total", Help: "Stored hashes upgraded after login."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: authcore.MetricPasswordResetConfirmSuccess, Name: "authcore_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: authcore.MetricPasswordResetConfirmFailure, Name: "authcore_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
	{ID: authcore.MetricEmailVerificationRequest, Name: "authcore_email_verification_request_total", Help: "Email verification requests."},
	{ID: authcore.MetricEmailVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Verified email addresses."},
	{ID: authcore.MetricEmailVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Rejected email verification links."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthenticateLatency, Name: "authcore_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's fixed
// latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets and ignoring extras.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
