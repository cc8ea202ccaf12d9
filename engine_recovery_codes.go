package authcore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal"
)

// GenerateRecoveryCodes creates count fresh recovery codes, replacing any
// previous set, and returns them in plaintext. Only salted digests are stored,
// so this is the only time the codes can be shown. A count of zero or less
// uses RecoveryCodesConfig.Count.
func (e *Engine) GenerateRecoveryCodes(ctx context.Context, userID string, count int) ([]string, error) {
	if count <= 0 {
		count = e.config.RecoveryCodes.Count
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, count)
	entries := make([]string, 0, count)
	for len(codes) < count {
		code, err := internal.NewRecoveryCode(e.config.RecoveryCodes.Length)
		if err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		entry, err := internal.NewRecoveryEntry(code)
		if err != nil {
			return nil, fmt.Errorf("hash recovery code: %w", err)
		}
		codes = append(codes, code)
		entries = append(entries, entry)
	}

	if err := e.updateFields(ctx, user.ID, credential.Fields{
		credential.FieldRecoveryCodes: entries,
	}); err != nil {
		return nil, err
	}

	e.metricInc(MetricRecoveryCodesGenerated)
	e.emitAudit(ctx, auditEventRecoveryCodesGenerated, true, user.ID, MethodRecoveryCode, nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(count)}
	})
	return codes, nil
}

// VerifyRecoveryCode consumes code if it matches one of the stored digests.
// The matched entry is removed by a single conditional update, so concurrent
// submissions of the same code succeed at most once. A failed attempt leaves
// the set untouched.
func (e *Engine) VerifyRecoveryCode(ctx context.Context, userID, code string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(user.RecoveryCodes) == 0 {
		e.recoveryFailure(ctx, user.ID, ErrSecondFactorNotEnrolled)
		return ErrSecondFactorNotEnrolled
	}

	entry := internal.MatchRecoveryEntries(user.RecoveryCodes, code)
	if entry == "" {
		e.recoveryFailure(ctx, user.ID, ErrSecondFactorMismatch)
		return ErrSecondFactorMismatch
	}

	consumed, err := e.consume(ctx, user.ID, credential.Fields{
		credential.FieldRecoveryCodes: credential.RemoveMember{Member: entry},
	}, credential.Condition{
		credential.Contains(credential.FieldRecoveryCodes, entry),
	})
	if err != nil {
		return err
	}
	if !consumed {
		e.recoveryFailure(ctx, user.ID, ErrSecondFactorMismatch)
		return fmt.Errorf("%w: recovery code already used", ErrSecondFactorMismatch)
	}

	remaining := len(user.RecoveryCodes) - 1
	e.metricInc(MetricRecoveryCodeUsed)
	e.emitAudit(ctx, auditEventRecoveryCodeUsed, true, user.ID, MethodRecoveryCode, nil, func() map[string]string {
		return map[string]string{"remaining": strconv.Itoa(remaining)}
	})
	if remaining == 0 {
		e.logger.Warn().Str("user_id", user.ID).Msg("last recovery code used")
	}
	return nil
}

// RecoveryCodesRemaining reports how many unused recovery codes the user has.
func (e *Engine) RecoveryCodesRemaining(ctx context.Context, userID string) (int, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(user.RecoveryCodes), nil
}

func (e *Engine) recoveryFailure(ctx context.Context, userID string, err error) {
	e.metricInc(MetricRecoveryCodeFailed)
	e.emitAudit(ctx, auditEventRecoveryCodeFailed, false, userID, MethodRecoveryCode, err, nil)
}
