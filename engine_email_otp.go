package authcore

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/mail"
)

// EnableEmailOTP makes email OTP an eligible second factor for the user.
func (e *Engine) EnableEmailOTP(ctx context.Context, userID string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.updateFields(ctx, user.ID, credential.Fields{
		credential.FieldEmailOTPEnabled: true,
	}); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventEmailOTPEnabled, true, user.ID, MethodEmailOTP, nil, nil)
	return nil
}

// DisableEmailOTP turns email OTP off and discards any outstanding code.
func (e *Engine) DisableEmailOTP(ctx context.Context, userID string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.updateFields(ctx, user.ID, credential.Fields{
		credential.FieldEmailOTPEnabled:   false,
		credential.FieldEmailOTPHash:      nil,
		credential.FieldEmailOTPExpiresAt: nil,
	}); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventEmailOTPDisabled, true, user.ID, MethodEmailOTP, nil, nil)
	return nil
}

// SendEmailOTP generates a numeric code, stores its hash with an expiry of
// EmailOTPConfig.TTL and mails it to emailAddress, or to the user's address
// when emailAddress is empty. A stored code is not rolled back when dispatch
// fails; the next call replaces it.
func (e *Engine) SendEmailOTP(ctx context.Context, userID, emailAddress string) error {
	if e.mailer == nil || e.renderer == nil {
		return ErrEngineNotReady
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	to := strings.TrimSpace(emailAddress)
	if to == "" {
		to = user.Email
	}

	code, err := internal.NewOTP(e.config.EmailOTP.Digits)
	if err != nil {
		return fmt.Errorf("generate email otp: %w", err)
	}
	expiresAt := e.now().Add(e.config.EmailOTP.TTL)
	if err := e.updateFields(ctx, user.ID, credential.Fields{
		credential.FieldEmailOTPHash:      internal.HashCode(user.ID, code),
		credential.FieldEmailOTPExpiresAt: expiresAt,
	}); err != nil {
		return err
	}

	subject, body, err := e.renderer.OTP(code, mail.PurposeTwoFactor, e.config.EmailOTP.TTL)
	if err != nil {
		return fmt.Errorf("render email otp: %w", err)
	}
	if err := e.mailer.Send(ctx, to, subject, body); err != nil {
		e.metricInc(MetricEmailOTPDispatchFailed)
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("email otp dispatch failed")
		e.emitAudit(ctx, auditEventEmailOTPDispatchFailed, false, user.ID, MethodEmailOTP, ErrDispatchFailed, nil)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	e.metricInc(MetricEmailOTPSent)
	e.emitAudit(ctx, auditEventEmailOTPSent, true, user.ID, MethodEmailOTP, nil, func() map[string]string {
		return map[string]string{"expires_at": auditTime(expiresAt)}
	})
	return nil
}

// VerifyEmailOTP accepts code when it matches the stored hash and the code
// has not expired. The stored code is cleared by the same conditional update
// that accepts it, so a code verifies at most once.
func (e *Engine) VerifyEmailOTP(ctx context.Context, userID, code string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailOTPHash == "" {
		e.emailOTPFailure(ctx, user.ID, ErrSecondFactorExpired)
		return fmt.Errorf("%w: no pending code", ErrSecondFactorExpired)
	}

	now := e.now()
	if !now.Before(user.EmailOTPExpiresAt) {
		e.emailOTPFailure(ctx, user.ID, ErrSecondFactorExpired)
		return ErrSecondFactorExpired
	}

	hash := internal.HashCode(user.ID, strings.TrimSpace(code))
	if subtle.ConstantTimeCompare([]byte(hash), []byte(user.EmailOTPHash)) != 1 {
		e.emailOTPFailure(ctx, user.ID, ErrSecondFactorMismatch)
		return ErrSecondFactorMismatch
	}

	consumed, err := e.consume(ctx, user.ID, credential.Fields{
		credential.FieldEmailOTPHash:      nil,
		credential.FieldEmailOTPExpiresAt: nil,
	}, credential.Condition{
		credential.Equals(credential.FieldEmailOTPHash, hash),
		credential.After(credential.FieldEmailOTPExpiresAt, now),
	})
	if err != nil {
		return err
	}
	if !consumed {
		e.emailOTPFailure(ctx, user.ID, ErrSecondFactorExpired)
		return fmt.Errorf("%w: code already used", ErrSecondFactorExpired)
	}

	e.metricInc(MetricEmailOTPSuccess)
	return nil
}

func (e *Engine) emailOTPFailure(ctx context.Context, userID string, err error) {
	e.metricInc(MetricEmailOTPFailure)
	e.emitAudit(ctx, auditEventEmailOTPFailure, false, userID, MethodEmailOTP, err, nil)
}
