package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/credential"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
	"github.com/rs/zerolog"
)

// Authentication method references written to the amr claim.
const (
	// AMRPassword marks tokens issued after a password check.
	AMRPassword = "pwd"
	// AMRSecondFactor marks session tokens issued after a completed second factor.
	AMRSecondFactor = "mfa"
)

// Engine is the authentication core: token verification, the second-factor
// engine and the login flows built on them.
//
// Engine instances are configured once through [Builder] and are safe for
// concurrent use.
type Engine struct {
	config       Config
	store        credential.Store
	mailer       mail.Sender
	renderer     *mail.Renderer
	tokens       *jwt.Manager
	passwordHash *password.Argon2
	dummyHash    string
	policy       password.Policy
	totp         *totpManager
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	clock        Clock
	logger       zerolog.Logger
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure
// or abandoned by a cancelled request.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

// Authenticate verifies a bearer token and loads the user it names.
//
// A valid session token for a user without second factors, or one issued
// after a completed challenge, yields StateAuthenticated. A challenge token
// yields StateChallenged, and a session token for a user who has since
// enabled a second factor yields StateSecondFactorRequired; such a session is
// upgraded through [Engine.CompleteLogin]. Refresh tokens are rejected with
// ErrTokenWrongStage. Failures return a non-nil result with State, Reason
// and, for expired tokens, ExpiresAt set, together with the error.
func (e *Engine) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	claims, err := e.verifyToken(token)
	if err != nil {
		result := &AuthResult{State: StateTokenInvalid, Reason: ReasonFor(err)}
		var expired *jwt.ExpiredError
		if errors.As(err, &expired) {
			e.metricInc(MetricTokenExpired)
			result.State = StateTokenExpired
			result.Expired = true
			result.ExpiresAt = expired.ExpiresAt
		} else {
			e.metricInc(MetricAuthenticateFailure)
		}
		e.logger.Debug().Err(err).Str("reason", string(result.Reason)).Msg("token rejected")
		return result, err
	}

	if claims.Stage == jwt.StageRefresh {
		e.metricInc(MetricAuthenticateFailure)
		return &AuthResult{State: StateTokenInvalid, Claims: claims, Reason: ReasonFor(ErrTokenWrongStage)}, ErrTokenWrongStage
	}

	user, err := e.loadUser(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return &AuthResult{State: StateTokenInvalid, Claims: claims, Reason: ReasonFor(err)}, err
	}

	result := &AuthResult{State: StateAuthenticated, User: user, Claims: claims}
	switch {
	case claims.Stage == jwt.StageChallenge:
		e.metricInc(MetricSecondFactorRequired)
		result.State = StateChallenged
		result.Reason = ReasonSecondFactorRequired
		return result, nil
	case e.RequireSecondFactor(user) && !claims.HasAMR(AMRSecondFactor):
		e.metricInc(MetricSecondFactorRequired)
		result.State = StateSecondFactorRequired
		result.Reason = ReasonSecondFactorRequired
		return result, nil
	}

	e.metricInc(MetricAuthenticateSuccess)
	return result, nil
}

// RequireSecondFactor reports whether at least one second-factor method is
// enabled for user. A pending TOTP enrollment does not count.
func (e *Engine) RequireSecondFactor(user credential.Record) bool {
	return user.TOTPEnabled || user.EmailOTPEnabled
}

// CompleteSecondFactor checks value against the named method.
//
// The result shape is the same for every method: nil on success, or
// ErrVerificationFailed when the code was wrong, expired or the method is not
// enrolled. The specific kind is kept in logs and audit events. Unknown users,
// store failures and unknown methods are returned as themselves.
func (e *Engine) CompleteSecondFactor(ctx context.Context, userID string, method Method, value string) error {
	handler, ok := e.secondFactorHandlers()[method]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	err := handler(ctx, userID, value)
	if err == nil {
		e.metricInc(MetricSecondFactorSuccess)
		e.emitAudit(ctx, auditEventSecondFactorSuccess, true, userID, method, nil, nil)
		return nil
	}

	if isSecondFactorFailure(err) {
		e.metricInc(MetricSecondFactorFailure)
		e.logger.Info().
			Str("user_id", userID).
			Str("method", method.String()).
			Err(err).
			Msg("second factor rejected")
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, userID, method, err, nil)
	}
	return PublicError(err)
}

type secondFactorHandler func(ctx context.Context, userID, value string) error

func (e *Engine) secondFactorHandlers() map[Method]secondFactorHandler {
	return map[Method]secondFactorHandler{
		MethodTOTP:         e.completeTOTP,
		MethodEmailOTP:     e.completeEmailOTP,
		MethodRecoveryCode: e.VerifyRecoveryCode,
	}
}

// completeTOTP checks an enabled authenticator, or finishes a pending
// enrollment when none is enabled yet.
func (e *Engine) completeTOTP(ctx context.Context, userID, code string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled && user.TOTPPendingSecret != "" {
		return e.ConfirmTOTP(ctx, userID, code)
	}
	return e.VerifyTOTP(ctx, userID, code)
}

func (e *Engine) completeEmailOTP(ctx context.Context, userID, code string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.EmailOTPEnabled {
		return ErrSecondFactorNotEnrolled
	}
	return e.VerifyEmailOTP(ctx, userID, code)
}

func (e *Engine) verifyToken(token string) (*jwt.Claims, error) {
	if e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.Verify(token)
	if err == nil {
		return claims, nil
	}

	switch {
	case errors.Is(err, jwt.ErrExpired):
		return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrBadSignature):
		return nil, fmt.Errorf("%w: %w", ErrTokenBadSignature, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}

func (e *Engine) issueToken(user credential.Record, stage jwt.Stage, amr []string) (string, time.Time, error) {
	ttl := e.config.Token.SessionTTL
	if stage == jwt.StageChallenge {
		ttl = e.config.Token.ChallengeTTL
	}
	return e.signToken(user, jwt.Claims{Stage: stage, AMR: amr}, ttl)
}

// signToken fills the user claims into claims and signs it for ttl.
func (e *Engine) signToken(user credential.Record, claims jwt.Claims, ttl time.Duration) (string, time.Time, error) {
	claims.Role = user.Role
	claims.ClubID = user.ClubID
	claims.Email = user.Email
	token, err := e.tokens.Issue(user.ID, claims, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	// NumericDate keeps whole seconds.
	return token, e.now().Add(ttl).Truncate(time.Second), nil
}

func (e *Engine) loadUser(ctx context.Context, userID string) (credential.Record, error) {
	if e.store == nil {
		return credential.Record{}, ErrEngineNotReady
	}
	if userID == "" {
		return credential.Record{}, ErrUserNotFound
	}
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return credential.Record{}, mapStoreError(err)
	}
	return user, nil
}

func (e *Engine) loadUserByEmail(ctx context.Context, email string) (credential.Record, error) {
	if e.store == nil {
		return credential.Record{}, ErrEngineNotReady
	}
	email = credential.NormalizeEmail(email)
	if email == "" {
		return credential.Record{}, ErrUserNotFound
	}
	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		return credential.Record{}, mapStoreError(err)
	}
	return user, nil
}

func (e *Engine) updateFields(ctx context.Context, userID string, fields credential.Fields) error {
	if err := e.store.UpdateUserFields(ctx, userID, fields); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// consume applies fields only while cond still holds. It reports false when
// another request got there first.
func (e *Engine) consume(ctx context.Context, userID string, fields credential.Fields, cond credential.Condition) (bool, error) {
	ok, err := e.store.UpdateUserFieldsIf(ctx, userID, fields, cond)
	if err != nil {
		return false, mapStoreError(err)
	}
	return ok, nil
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, credential.ErrNotFound):
		return ErrUserNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
