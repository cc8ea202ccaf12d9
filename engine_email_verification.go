package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/credential"
)

// RequestEmailVerification mails a single-use verification link. Unknown and
// already verified addresses return nil without sending.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationDisabled
	}
	if e.mailer == nil || e.renderer == nil {
		return ErrEngineNotReady
	}

	user, err := e.loadUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	link := e.emailVerificationLink()
	token, err := link.issue(ctx, e, user.ID)
	if err != nil {
		return err
	}
	subject, body, err := e.renderer.Verification(token, link.ttl)
	if err != nil {
		return fmt.Errorf("render verification: %w", err)
	}
	if err := e.mailer.Send(ctx, user.Email, subject, body); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("verification dispatch failed")
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, user.ID, 0, ErrDispatchFailed, nil)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, 0, nil, nil)
	return nil
}

// ConfirmEmailVerification redeems a verification token and marks the
// address verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationDisabled
	}

	userID, err := e.emailVerificationLink().redeem(ctx, e, token, credential.Fields{
		credential.FieldEmailVerified: true,
	})
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, userID, 0, err, nil)
		return err
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, userID, 0, nil, nil)
	return nil
}
