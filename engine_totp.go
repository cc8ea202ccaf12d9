package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/credential"
)

// GenerateTOTPSecret stores a fresh random secret as the user's pending TOTP
// secret and returns it. TOTP is not enabled until [Engine.ConfirmTOTP]
// succeeds; calling again replaces the pending secret.
func (e *Engine) GenerateTOTPSecret(ctx context.Context, userID string) (string, error) {
	if e.totp == nil {
		return "", ErrEngineNotReady
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	secret, err := e.totp.GenerateSecret(user.Email)
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	if err := e.updateFields(ctx, user.ID, credential.Fields{
		credential.FieldTOTPPendingSecret: secret,
	}); err != nil {
		return "", err
	}

	e.metricInc(MetricTOTPEnrollmentStarted)
	e.emitAudit(ctx, auditEventTOTPEnrollmentStarted, true, user.ID, MethodTOTP, nil, nil)
	return secret, nil
}

// BuildEnrollmentURI formats the otpauth:// provisioning URI for secret.
// An empty issuerLabel falls back to the configured issuer.
func (e *Engine) BuildEnrollmentURI(secret, accountLabel, issuerLabel string) string {
	return e.totp.ProvisionURI(secret, accountLabel, issuerLabel)
}

// EnrollmentQRCode renders uri as a PNG data URL sized per TOTPConfig.QRCodeSize.
func (e *Engine) EnrollmentQRCode(uri string) (string, error) {
	return QRCode(uri, e.config.TOTP.QRCodeSize)
}

// BeginTOTPEnrollment generates a pending secret and returns it together with
// its provisioning URI and QR code, labelled with the user's email.
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, userID string) (*TOTPEnrollment, error) {
	secret, err := e.GenerateTOTPSecret(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	uri := e.BuildEnrollmentURI(secret, user.Email, "")
	qr, err := e.EnrollmentQRCode(uri)
	if err != nil {
		return nil, err
	}
	return &TOTPEnrollment{Secret: secret, URI: uri, QRCode: qr}, nil
}

// CurrentTOTPCode derives the code for secret at the engine clock. It is meant
// for tooling; request paths verify with [Engine.VerifyTOTP].
func (e *Engine) CurrentTOTPCode(secret string) (string, error) {
	if e.totp == nil {
		return "", ErrEngineNotReady
	}
	if secret == "" {
		return "", errors.New("empty totp secret")
	}
	return e.totp.Code(secret, e.now())
}

// ConfirmTOTP checks code against the pending secret. On success the pending
// secret becomes the active one and TOTP is enabled; on failure nothing changes.
func (e *Engine) ConfirmTOTP(ctx context.Context, userID, code string) error {
	if e.totp == nil {
		return ErrEngineNotReady
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	pending := user.TOTPPendingSecret
	if pending == "" {
		e.totpFailure(ctx, user.ID, ErrSecondFactorNotEnrolled)
		return ErrSecondFactorNotEnrolled
	}

	ok, counter, err := e.totp.VerifyCode(pending, code, e.now())
	if err != nil {
		return fmt.Errorf("verify totp: %w", err)
	}
	if !ok {
		e.totpFailure(ctx, user.ID, ErrSecondFactorMismatch)
		return ErrSecondFactorMismatch
	}

	applied, err := e.consume(ctx, user.ID, credential.Fields{
		credential.FieldTOTPSecret:        pending,
		credential.FieldTOTPPendingSecret: nil,
		credential.FieldTOTPEnabled:       true,
		credential.FieldTOTPLastStep:      counter,
	}, credential.Condition{
		credential.Equals(credential.FieldTOTPPendingSecret, pending),
	})
	if err != nil {
		return err
	}
	if !applied {
		// The pending secret was replaced or confirmed by a concurrent call.
		e.totpFailure(ctx, user.ID, ErrSecondFactorMismatch)
		return ErrSecondFactorMismatch
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, user.ID, MethodTOTP, nil, nil)
	return nil
}

// VerifyTOTP checks code against the active secret. With replay protection
// on, the matched time step must be newer than the last accepted one; the
// step is recorded in the same conditional update that accepts it.
func (e *Engine) VerifyTOTP(ctx context.Context, userID, code string) error {
	if e.totp == nil {
		return ErrEngineNotReady
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled || user.TOTPSecret == "" {
		e.totpFailure(ctx, user.ID, ErrSecondFactorNotEnrolled)
		return ErrSecondFactorNotEnrolled
	}

	ok, counter, err := e.totp.VerifyCode(user.TOTPSecret, code, e.now())
	if err != nil {
		return fmt.Errorf("verify totp: %w", err)
	}
	if !ok {
		e.totpFailure(ctx, user.ID, ErrSecondFactorMismatch)
		return ErrSecondFactorMismatch
	}

	if e.config.TOTP.EnforceReplayProtection {
		applied, err := e.consume(ctx, user.ID, credential.Fields{
			credential.FieldTOTPLastStep: counter,
		}, credential.Condition{
			credential.Equals(credential.FieldTOTPEnabled, true),
			credential.Equals(credential.FieldTOTPSecret, user.TOTPSecret),
			credential.Less(credential.FieldTOTPLastStep, counter),
		})
		if err != nil {
			return err
		}
		if !applied {
			e.metricInc(MetricTOTPReplayRejected)
			e.emitAudit(ctx, auditEventTOTPReplayRejected, false, user.ID, MethodTOTP, ErrSecondFactorMismatch, nil)
			return fmt.Errorf("%w: time step already used", ErrSecondFactorMismatch)
		}
	}

	e.metricInc(MetricTOTPSuccess)
	return nil
}

func (e *Engine) totpFailure(ctx context.Context, userID string, err error) {
	e.metricInc(MetricTOTPFailure)
	e.emitAudit(ctx, auditEventTOTPFailure, false, userID, MethodTOTP, err, nil)
}
