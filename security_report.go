package authcore

import "time"

// SecurityReport summarizes the security posture of a built engine. It holds
// no key material.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	KeyID            string
	RotationKeys     int
	SessionTTL       time.Duration
	ChallengeTTL     time.Duration
	RefreshTTL       time.Duration
	RememberMeTTL    time.Duration
	Argon2           PasswordConfigReport
	PasswordPolicy   PasswordPolicyReport

	TOTPDigits              int
	TOTPPeriod              int
	TOTPSkew                int
	TOTPReplayProtection    bool
	EmailOTPTTL             time.Duration
	RecoveryCodeCount       int
	EmailVerificationActive bool
	EmailVerificationGating bool
	PasswordResetActive     bool
	AuditActive             bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type PasswordPolicyReport struct {
	MinLength  int
	MaxLength  int
	MinClasses int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.Token.SigningMethod,
		KeyID:            e.config.Token.KeyID,
		RotationKeys:     len(e.config.Token.VerifyKeys),
		SessionTTL:       e.config.Token.SessionTTL,
		ChallengeTTL:     e.config.Token.ChallengeTTL,
		RefreshTTL:       e.config.Token.RefreshTTL,
		RememberMeTTL:    e.config.Token.RememberMeTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		PasswordPolicy: PasswordPolicyReport{
			MinLength:  e.policy.MinLength,
			MaxLength:  e.policy.MaxLength,
			MinClasses: e.policy.MinClasses,
		},
		TOTPDigits:              e.config.TOTP.Digits,
		TOTPPeriod:              e.config.TOTP.Period,
		TOTPSkew:                e.config.TOTP.Skew,
		TOTPReplayProtection:    e.config.TOTP.EnforceReplayProtection,
		EmailOTPTTL:             e.config.EmailOTP.TTL,
		RecoveryCodeCount:       e.config.RecoveryCodes.Count,
		EmailVerificationActive: e.config.EmailVerification.Enabled,
		EmailVerificationGating: e.config.EmailVerification.RequireForLogin,
		PasswordResetActive:     e.config.PasswordReset.Enabled,
		AuditActive:             e.audit != nil,
	}
}
