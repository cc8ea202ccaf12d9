package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/credential"
)

// DisableAllTwoFactor removes every second factor: the TOTP secret (active
// and pending), both method flags, any outstanding email OTP and the recovery
// codes. Re-enabling requires a fresh enrollment.
func (e *Engine) DisableAllTwoFactor(ctx context.Context, userID string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := e.updateFields(ctx, user.ID, credential.Fields{
		credential.FieldTOTPEnabled:       false,
		credential.FieldTOTPSecret:        nil,
		credential.FieldTOTPPendingSecret: nil,
		credential.FieldTOTPLastStep:      nil,
		credential.FieldEmailOTPEnabled:   false,
		credential.FieldEmailOTPHash:      nil,
		credential.FieldEmailOTPExpiresAt: nil,
		credential.FieldRecoveryCodes:     nil,
	}); err != nil {
		return err
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.logger.Info().Str("user_id", user.ID).Msg("two-factor authentication disabled")
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, user.ID, 0, nil, nil)
	return nil
}

// TwoFactorStatus summarizes the user's second-factor enrollment.
func (e *Engine) TwoFactorStatus(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TwoFactorStatus{
		TOTPEnabled:            user.TOTPEnabled,
		TOTPPending:            !user.TOTPEnabled && user.TOTPPendingSecret != "",
		EmailOTPEnabled:        user.EmailOTPEnabled,
		RecoveryCodesRemaining: len(user.RecoveryCodes),
		Methods:                enabledMethods(user),
	}, nil
}

// enabledMethods lists the methods a challenge can be completed with.
// Recovery codes count only alongside an enabled method.
func enabledMethods(user credential.Record) []Method {
	var methods []Method
	if user.TOTPEnabled {
		methods = append(methods, MethodTOTP)
	}
	if user.EmailOTPEnabled {
		methods = append(methods, MethodEmailOTP)
	}
	if len(methods) > 0 && len(user.RecoveryCodes) > 0 {
		methods = append(methods, MethodRecoveryCode)
	}
	return methods
}
