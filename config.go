package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config is the full engine configuration. Build it once at startup and pass
// it to [Builder.WithConfig]; the engine keeps its own copy.
type Config struct {
	Token             TokenConfig
	TOTP              TOTPConfig
	EmailOTP          EmailOTPConfig
	RecoveryCodes     RecoveryCodesConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Mail              MailConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Security          SecurityConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures session and challenge token issuance.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	// KeyID is written to the kid header. VerifyKeys maps additional kids to
	// public keys (or HMAC secrets) still accepted during a key swap.
	KeyID      string
	VerifyKeys map[string][]byte

	Issuer   string
	Audience string
	Leeway   time.Duration

	SessionTTL   time.Duration
	ChallengeTTL time.Duration
	// RefreshWindow bounds how close to expiry a session may be refreshed;
	// zero allows refresh at any point before expiry.
	RefreshWindow time.Duration
	// RefreshTTL is the lifetime of the refresh token issued with every
	// session; RememberMeTTL replaces it for logins that asked to be
	// remembered. A zero RefreshTTL disables refresh tokens.
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// TOTPConfig configures authenticator-app codes.
type TOTPConfig struct {
	Issuer     string
	Digits     int
	Period     int
	Algorithm  string
	Skew       int
	SecretSize int
	// EnforceReplayProtection rejects a code whose time step is not newer
	// than the last accepted one.
	EnforceReplayProtection bool
	QRCodeSize              int
}

// EmailOTPConfig configures emailed one-time codes.
type EmailOTPConfig struct {
	Digits int
	TTL    time.Duration
	// Subject overrides the rendered subject line when set.
	Subject string
}

// RecoveryCodesConfig configures recovery code batches.
type RecoveryCodesConfig struct {
	Count  int
	Length int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the strength policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength  int
	MaxLength  int
	MinClasses int

	// UpgradeOnLogin re-hashes legacy or weaker hashes after a successful login.
	UpgradeOnLogin bool
}

// PasswordResetConfig configures the reset link flow.
type PasswordResetConfig struct {
	Enabled bool
	TTL     time.Duration
}

// EmailVerificationConfig configures the verification link flow.
type EmailVerificationConfig struct {
	Enabled         bool
	TTL             time.Duration
	RequireForLogin bool
}

// MailConfig controls rendered message content.
type MailConfig struct {
	Product string
	BaseURL string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds deployment hardening switches.
type SecurityConfig struct {
	ProductionMode bool
}

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "ed25519",
			Issuer:        "authcore",
			Leeway:        0,
			SessionTTL:    15 * time.Minute,
			ChallengeTTL:  5 * time.Minute,
			RefreshWindow: 0,
			RefreshTTL:    24 * time.Hour,
			RememberMeTTL: 7 * 24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:                  "Zenith Platform",
			Digits:                  6,
			Period:                  30,
			Algorithm:               "SHA1",
			Skew:                    1,
			SecretSize:              20,
			EnforceReplayProtection: true,
			QRCodeSize:              256,
		},
		EmailOTP: EmailOTPConfig{
			Digits: 6,
			TTL:    10 * time.Minute,
		},
		RecoveryCodes: RecoveryCodesConfig{
			Count:  10,
			Length: 10,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      128,
			MinClasses:     3,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:         true,
			TTL:             24 * time.Hour,
			RequireForLogin: false,
		},
		Mail: MailConfig{
			Product: "Zenith",
			BaseURL: "http://localhost:3000",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// Token
	switch c.Token.SigningMethod {
	case "ed25519", "hs256":
	default:
		return errors.New("Token SigningMethod must be ed25519 or hs256")
	}
	if len(c.Token.PrivateKey) == 0 {
		return errors.New("Token PrivateKey must be provided")
	}
	if c.Token.SessionTTL <= 0 {
		return errors.New("Token SessionTTL must be > 0")
	}
	if c.Token.ChallengeTTL <= 0 {
		return errors.New("Token ChallengeTTL must be > 0")
	}
	if c.Token.ChallengeTTL > c.Token.SessionTTL {
		return errors.New("Token ChallengeTTL must be <= SessionTTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 5*time.Minute {
		return errors.New("Token Leeway must be between 0 and 5m")
	}
	if c.Token.RefreshWindow < 0 || c.Token.RefreshWindow > c.Token.SessionTTL {
		return errors.New("Token RefreshWindow must be between 0 and SessionTTL")
	}
	if c.Token.RefreshTTL < 0 {
		return errors.New("Token RefreshTTL must be >= 0")
	}
	if c.Token.RefreshTTL > 0 {
		if c.Token.RefreshTTL < c.Token.SessionTTL {
			return errors.New("Token RefreshTTL must be >= SessionTTL")
		}
		if c.Token.RememberMeTTL != 0 && c.Token.RememberMeTTL < c.Token.RefreshTTL {
			return errors.New("Token RememberMeTTL must be 0 or >= RefreshTTL")
		}
	}
	for kid, key := range c.Token.VerifyKeys {
		if kid == "" || len(key) == 0 {
			return errors.New("Token VerifyKeys entries need a kid and a key")
		}
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be provided")
	}
	if strings.Contains(c.TOTP.Issuer, ":") {
		return errors.New("TOTP Issuer must not contain ':'")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be between 0 and 3")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256 or SHA512")
	}
	if c.TOTP.SecretSize < 10 {
		return errors.New("TOTP SecretSize must be >= 10")
	}
	if c.TOTP.QRCodeSize < 64 {
		return errors.New("TOTP QRCodeSize must be >= 64")
	}

	// Email OTP
	if c.EmailOTP.Digits < 6 || c.EmailOTP.Digits > 10 {
		return errors.New("EmailOTP Digits must be between 6 and 10")
	}
	if c.EmailOTP.TTL <= 0 {
		return errors.New("EmailOTP TTL must be > 0")
	}

	// Recovery codes
	if c.RecoveryCodes.Count <= 0 || c.RecoveryCodes.Count > 50 {
		return errors.New("RecoveryCodes Count must be between 1 and 50")
	}
	if c.RecoveryCodes.Length < 8 || c.RecoveryCodes.Length > 32 {
		return errors.New("RecoveryCodes Length must be between 8 and 32")
	}

	// Password
	if c.Password.MinLength <= 0 {
		return errors.New("Password MinLength must be > 0")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.MinClasses < 0 || c.Password.MinClasses > 4 {
		return errors.New("Password MinClasses must be between 0 and 4")
	}

	// Flows
	if c.PasswordReset.Enabled && c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.EmailVerification.Enabled && c.EmailVerification.TTL <= 0 {
		return errors.New("EmailVerification TTL must be > 0")
	}
	if c.EmailVerification.RequireForLogin && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification RequireForLogin requires EmailVerification Enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Production hardening
	if c.Security.ProductionMode {
		if c.Token.SessionTTL > time.Hour {
			return errors.New("ProductionMode requires Token SessionTTL <= 1h")
		}
		if c.Token.ChallengeTTL > 10*time.Minute {
			return errors.New("ProductionMode requires Token ChallengeTTL <= 10m")
		}
		if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.TOTP.Skew > 1 {
			return errors.New("ProductionMode requires TOTP Skew <= 1")
		}
		if !c.TOTP.EnforceReplayProtection {
			return errors.New("ProductionMode requires TOTP EnforceReplayProtection")
		}
		if c.EmailOTP.TTL > 15*time.Minute {
			return errors.New("ProductionMode requires EmailOTP TTL <= 15m")
		}
		if c.RecoveryCodes.Count < 8 {
			return errors.New("ProductionMode requires RecoveryCodes Count >= 8")
		}
		if c.PasswordReset.Enabled && c.PasswordReset.TTL > 2*time.Hour {
			return errors.New("ProductionMode requires PasswordReset TTL <= 2h")
		}
		if strings.HasPrefix(c.Mail.BaseURL, "http://") {
			return errors.New("ProductionMode requires an https Mail BaseURL")
		}
	}

	return nil
}
