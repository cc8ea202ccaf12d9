package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/jwt"
)

// LoginOption adjusts a single [Engine.Login] call.
type LoginOption func(*loginOptions)

type loginOptions struct {
	rememberMe bool
}

// RememberMe gives the resulting refresh token TokenConfig.RememberMeTTL
// instead of RefreshTTL. The choice survives the challenge step.
func RememberMe() LoginOption {
	return func(o *loginOptions) { o.rememberMe = true }
}

// Login checks email and password. Users without an enabled second factor
// receive a session token; the others receive a short-lived challenge token
// to be redeemed through [Engine.CompleteLogin].
//
// Unknown emails and wrong passwords both return ErrInvalidCredentials, and
// both pay for one password hash comparison.
func (e *Engine) Login(ctx context.Context, email, password string, opts ...LoginOption) (*LoginResult, error) {
	if e.passwordHash == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	var options loginOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	user, err := e.loadUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.burnPasswordCheck(password)
			err = ErrInvalidCredentials
		}
		return nil, e.loginFailure(ctx, "", err)
	}
	if user.PasswordHash == "" || password == "" {
		e.burnPasswordCheck(password)
		return nil, e.loginFailure(ctx, user.ID, ErrInvalidCredentials)
	}

	ok, err := e.passwordHash.Verify(password, user.PasswordHash)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("password hash verification error")
		return nil, e.loginFailure(ctx, user.ID, ErrInvalidCredentials)
	}
	if !ok {
		return nil, e.loginFailure(ctx, user.ID, ErrInvalidCredentials)
	}

	if e.config.EmailVerification.RequireForLogin && !user.EmailVerified {
		return nil, e.loginFailure(ctx, user.ID, ErrEmailUnverified)
	}

	if e.config.Password.UpgradeOnLogin {
		e.rehashPassword(ctx, user, password)
	}

	if e.RequireSecondFactor(user) {
		token, expiresAt, err := e.signToken(user, jwt.Claims{
			Stage:    jwt.StageChallenge,
			AMR:      []string{AMRPassword},
			Remember: options.rememberMe,
		}, e.config.Token.ChallengeTTL)
		if err != nil {
			return nil, err
		}
		methods := enabledMethods(user)
		e.metricInc(MetricLoginChallengeIssued)
		e.emitAudit(ctx, auditEventLoginChallengeIssued, true, user.ID, 0, nil, func() map[string]string {
			return map[string]string{"methods": joinMethods(methods)}
		})
		return &LoginResult{
			UserID:               user.ID,
			ChallengeToken:       token,
			ExpiresAt:            expiresAt,
			SecondFactorRequired: true,
			Methods:              methods,
		}, nil
	}

	return e.issueSession(ctx, user, 0, []string{AMRPassword}, options.rememberMe)
}

// CompleteLogin redeems a token with a second factor and returns a session
// token carrying the "mfa" method. It accepts the challenge token from
// [Engine.Login], and also a session token that has not completed a second
// factor: a session issued before the user enabled one, or one whose TOTP
// enrollment is confirmed by this call. Second-factor failures are returned
// in their public form, ErrVerificationFailed.
func (e *Engine) CompleteLogin(ctx context.Context, token string, method Method, value string) (*LoginResult, error) {
	claims, err := e.verifyToken(token)
	if err != nil {
		return nil, e.loginFailure(ctx, "", err)
	}
	switch {
	case claims.Stage == jwt.StageChallenge:
	case claims.Stage == jwt.StageSession && !claims.HasAMR(AMRSecondFactor):
	default:
		return nil, e.loginFailure(ctx, claims.Subject, ErrTokenWrongStage)
	}

	if err := e.CompleteSecondFactor(ctx, claims.Subject, method, value); err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	user, err := e.loadUser(ctx, claims.Subject)
	if err != nil {
		return nil, e.loginFailure(ctx, claims.Subject, err)
	}
	return e.issueSession(ctx, user, method, withAMR(claims.AMR, AMRSecondFactor), claims.Remember)
}

// RefreshSession issues a new session token. It accepts either a refresh
// token, which keeps its own absolute expiry and is not re-issued, or a still
// valid session token; for the latter TokenConfig.RefreshWindow, when set,
// limits refresh to that span before expiry. The authentication methods of
// the presented token carry over.
func (e *Engine) RefreshSession(ctx context.Context, token string) (*LoginResult, error) {
	claims, err := e.verifyToken(token)
	if err != nil {
		return nil, err
	}
	switch claims.Stage {
	case jwt.StageRefresh:
	case jwt.StageSession:
		if window := e.config.Token.RefreshWindow; window > 0 && claims.ExpiresAt != nil {
			if claims.ExpiresAt.Time.Sub(e.now()) > window {
				return nil, ErrRefreshTooEarly
			}
		}
	default:
		return nil, ErrTokenWrongStage
	}

	user, err := e.loadUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	// A second factor enabled after the token was issued must be completed
	// before the session can be extended.
	if e.RequireSecondFactor(user) && !claims.HasAMR(AMRSecondFactor) {
		return nil, ErrSecondFactorRequired
	}

	newToken, expiresAt, err := e.issueToken(user, jwt.StageSession, claims.AMR)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionRefreshed)
	e.emitAudit(ctx, auditEventSessionRefreshed, true, user.ID, 0, nil, func() map[string]string {
		return map[string]string{"via": string(claims.Stage)}
	})
	return &LoginResult{UserID: user.ID, SessionToken: newToken, ExpiresAt: expiresAt}, nil
}

func (e *Engine) issueSession(ctx context.Context, user credential.Record, method Method, amr []string, remember bool) (*LoginResult, error) {
	token, expiresAt, err := e.issueToken(user, jwt.StageSession, amr)
	if err != nil {
		return nil, err
	}
	res := &LoginResult{UserID: user.ID, SessionToken: token, ExpiresAt: expiresAt}

	if ttl := e.refreshTTL(remember); ttl > 0 {
		res.RefreshToken, res.RefreshExpiresAt, err = e.signToken(user, jwt.Claims{
			Stage:    jwt.StageRefresh,
			AMR:      amr,
			Remember: remember,
		}, ttl)
		if err != nil {
			return nil, err
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, method, nil, nil)
	return res, nil
}

func (e *Engine) refreshTTL(remember bool) time.Duration {
	ttl := e.config.Token.RefreshTTL
	if ttl > 0 && remember && e.config.Token.RememberMeTTL > 0 {
		ttl = e.config.Token.RememberMeTTL
	}
	return ttl
}

// burnPasswordCheck runs one comparison against a fixed hash so that the
// unknown-account branch of Login costs the same as a wrong password.
func (e *Engine) burnPasswordCheck(password string) {
	if e.dummyHash == "" {
		return
	}
	_, _ = e.passwordHash.Verify(password, e.dummyHash)
}

func withAMR(amr []string, method string) []string {
	out := make([]string, 0, len(amr)+1)
	for _, m := range amr {
		if m == method {
			return append(out, amr...)
		}
	}
	out = append(out, amr...)
	return append(out, method)
}

// rehashPassword replaces a legacy or weaker hash after a successful login.
// Failures are logged; the login itself has already succeeded.
func (e *Engine) rehashPassword(ctx context.Context, user credential.Record, password string) {
	upgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	newHash, err := e.passwordHash.Hash(password)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
		return
	}
	applied, err := e.consume(ctx, user.ID, credential.Fields{
		credential.FieldPasswordHash: newHash,
	}, credential.Condition{
		credential.Equals(credential.FieldPasswordHash, user.PasswordHash),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash not stored")
		return
	}
	if applied {
		e.metricInc(MetricPasswordRehashed)
		e.emitAudit(ctx, auditEventPasswordRehashed, true, user.ID, 0, nil, nil)
	}
}

func (e *Engine) loginFailure(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricLoginFailure)
	e.logger.Debug().Err(err).Str("user_id", userID).Msg("login rejected")
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, 0, err, nil)
	return err
}

func joinMethods(methods []Method) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}
	return strings.Join(names, ",")
}
