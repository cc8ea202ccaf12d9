package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/password"
)

// HashPassword checks plaintext against the password policy and returns its
// argon2id hash, ready to store as a record's password hash.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	if strength := e.policy.Analyze(plaintext); !strength.Valid {
		return "", fmt.Errorf("%w: %s", ErrPasswordPolicy, strings.Join(strength.Feedback, "; "))
	}
	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return "", err
	}
	return hash, nil
}

// RequestPasswordReset mails a single-use reset link to the account
// registered under email. Unknown addresses return nil without sending.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}
	if e.mailer == nil || e.renderer == nil {
		return ErrEngineNotReady
	}

	user, err := e.loadUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricPasswordResetRequest)
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", 0, err, nil)
			return nil
		}
		return err
	}

	link := e.passwordResetLink()
	token, err := link.issue(ctx, e, user.ID)
	if err != nil {
		return err
	}
	subject, body, err := e.renderer.PasswordReset(token, link.ttl)
	if err != nil {
		return fmt.Errorf("render password reset: %w", err)
	}
	if err := e.mailer.Send(ctx, user.Email, subject, body); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("password reset dispatch failed")
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, 0, ErrDispatchFailed, nil)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, 0, nil, nil)
	return nil
}

// ConfirmPasswordReset redeems a reset token and sets newPassword. The
// password is checked against the policy before the token is consumed, so a
// rejected password leaves the link usable.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}

	hash, err := e.HashPassword(newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return err
	}

	userID, err := e.passwordResetLink().redeem(ctx, e, token, credential.Fields{
		credential.FieldPasswordHash: hash,
	})
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, 0, err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.logger.Info().Str("user_id", userID).Msg("password reset completed")
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, userID, 0, nil, nil)
	return nil
}
