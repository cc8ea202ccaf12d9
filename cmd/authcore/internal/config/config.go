// Package config loads the authcore CLI settings with viper and turns them
// into an authcore.Config.
package config

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrKeyMaterial reports that no signing key or secret is configured.
var ErrKeyMaterial = errors.New("token key material missing")

// EnvPrefix is prepended to upper-cased keys, e.g. AUTHCORE_TOKEN_SECRET.
const EnvPrefix = "AUTHCORE"

// File mirrors authcore.Config in a form that fits a YAML file. Key material
// is referenced by path, except the HS256 secret which is usually supplied
// through the environment.
type File struct {
	Token             TokenFile             `mapstructure:"token" yaml:"token"`
	TOTP              TOTPFile              `mapstructure:"totp" yaml:"totp"`
	EmailOTP          EmailOTPFile          `mapstructure:"email_otp" yaml:"email_otp"`
	RecoveryCodes     RecoveryCodesFile     `mapstructure:"recovery_codes" yaml:"recovery_codes"`
	Password          PasswordFile          `mapstructure:"password" yaml:"password"`
	PasswordReset     LinkFile              `mapstructure:"password_reset" yaml:"password_reset"`
	EmailVerification EmailVerificationFile `mapstructure:"email_verification" yaml:"email_verification"`
	Mail              MailFile              `mapstructure:"mail" yaml:"mail"`
	Audit             AuditFile             `mapstructure:"audit" yaml:"audit"`
	ProductionMode    bool                  `mapstructure:"production_mode" yaml:"production_mode"`
	Output            OutputFile            `mapstructure:"output" yaml:"output"`
}

type TokenFile struct {
	SigningMethod  string            `mapstructure:"signing_method" yaml:"signing_method"`
	PrivateKeyFile string            `mapstructure:"private_key_file" yaml:"private_key_file"`
	PublicKeyFile  string            `mapstructure:"public_key_file" yaml:"public_key_file"`
	Secret         string            `mapstructure:"secret" yaml:"secret"`
	KeyID          string            `mapstructure:"key_id" yaml:"key_id"`
	// Viper lower-cases map keys, so rotation kids must be lower case.
	VerifyKeyFiles map[string]string `mapstructure:"verify_key_files" yaml:"verify_key_files"`
	Issuer         string            `mapstructure:"issuer" yaml:"issuer"`
	Audience       string            `mapstructure:"audience" yaml:"audience"`
	Leeway         time.Duration     `mapstructure:"leeway" yaml:"leeway"`
	SessionTTL     time.Duration     `mapstructure:"session_ttl" yaml:"session_ttl"`
	ChallengeTTL   time.Duration     `mapstructure:"challenge_ttl" yaml:"challenge_ttl"`
	RefreshWindow  time.Duration     `mapstructure:"refresh_window" yaml:"refresh_window"`
	RefreshTTL     time.Duration     `mapstructure:"refresh_ttl" yaml:"refresh_ttl"`
	RememberMeTTL  time.Duration     `mapstructure:"remember_me_ttl" yaml:"remember_me_ttl"`
}

type TOTPFile struct {
	Issuer           string `mapstructure:"issuer" yaml:"issuer"`
	Digits           int    `mapstructure:"digits" yaml:"digits"`
	Period           int    `mapstructure:"period" yaml:"period"`
	Algorithm        string `mapstructure:"algorithm" yaml:"algorithm"`
	Skew             int    `mapstructure:"skew" yaml:"skew"`
	SecretSize       int    `mapstructure:"secret_size" yaml:"secret_size"`
	ReplayProtection bool   `mapstructure:"replay_protection" yaml:"replay_protection"`
	QRCodeSize       int    `mapstructure:"qr_code_size" yaml:"qr_code_size"`
}

type EmailOTPFile struct {
	Digits  int           `mapstructure:"digits" yaml:"digits"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Subject string        `mapstructure:"subject" yaml:"subject"`
}

type RecoveryCodesFile struct {
	Count  int `mapstructure:"count" yaml:"count"`
	Length int `mapstructure:"length" yaml:"length"`
}

type PasswordFile struct {
	Memory         uint32 `mapstructure:"memory_kib" yaml:"memory_kib"`
	Time           uint32 `mapstructure:"time" yaml:"time"`
	Parallelism    uint8  `mapstructure:"parallelism" yaml:"parallelism"`
	SaltLength     uint32 `mapstructure:"salt_length" yaml:"salt_length"`
	KeyLength      uint32 `mapstructure:"key_length" yaml:"key_length"`
	MinLength      int    `mapstructure:"min_length" yaml:"min_length"`
	MaxLength      int    `mapstructure:"max_length" yaml:"max_length"`
	MinClasses     int    `mapstructure:"min_classes" yaml:"min_classes"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login" yaml:"upgrade_on_login"`
}

type LinkFile struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type EmailVerificationFile struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	RequireForLogin bool          `mapstructure:"require_for_login" yaml:"require_for_login"`
}

type MailFile struct {
	Product string `mapstructure:"product" yaml:"product"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type AuditFile struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" yaml:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full" yaml:"drop_if_full"`
}

type OutputFile struct {
	Format string `mapstructure:"format" yaml:"format"`
	Colors bool   `mapstructure:"colors" yaml:"colors"`
}

// Default is the file form of authcore.DefaultConfig.
func Default() File {
	cfg := authcore.DefaultConfig()
	return File{
		Token: TokenFile{
			SigningMethod:  cfg.Token.SigningMethod,
			KeyID:          cfg.Token.KeyID,
			VerifyKeyFiles: map[string]string{},
			Issuer:         cfg.Token.Issuer,
			Audience:       cfg.Token.Audience,
			Leeway:         cfg.Token.Leeway,
			SessionTTL:     cfg.Token.SessionTTL,
			ChallengeTTL:   cfg.Token.ChallengeTTL,
			RefreshWindow:  cfg.Token.RefreshWindow,
			RefreshTTL:     cfg.Token.RefreshTTL,
			RememberMeTTL:  cfg.Token.RememberMeTTL,
		},
		TOTP: TOTPFile{
			Issuer:           cfg.TOTP.Issuer,
			Digits:           cfg.TOTP.Digits,
			Period:           cfg.TOTP.Period,
			Algorithm:        cfg.TOTP.Algorithm,
			Skew:             cfg.TOTP.Skew,
			SecretSize:       cfg.TOTP.SecretSize,
			ReplayProtection: cfg.TOTP.EnforceReplayProtection,
			QRCodeSize:       cfg.TOTP.QRCodeSize,
		},
		EmailOTP: EmailOTPFile{
			Digits:  cfg.EmailOTP.Digits,
			TTL:     cfg.EmailOTP.TTL,
			Subject: cfg.EmailOTP.Subject,
		},
		RecoveryCodes: RecoveryCodesFile{Count: cfg.RecoveryCodes.Count, Length: cfg.RecoveryCodes.Length},
		Password: PasswordFile{
			Memory:         cfg.Password.Memory,
			Time:           cfg.Password.Time,
			Parallelism:    cfg.Password.Parallelism,
			SaltLength:     cfg.Password.SaltLength,
			KeyLength:      cfg.Password.KeyLength,
			MinLength:      cfg.Password.MinLength,
			MaxLength:      cfg.Password.MaxLength,
			MinClasses:     cfg.Password.MinClasses,
			UpgradeOnLogin: cfg.Password.UpgradeOnLogin,
		},
		PasswordReset: LinkFile{Enabled: cfg.PasswordReset.Enabled, TTL: cfg.PasswordReset.TTL},
		EmailVerification: EmailVerificationFile{
			Enabled:         cfg.EmailVerification.Enabled,
			TTL:             cfg.EmailVerification.TTL,
			RequireForLogin: cfg.EmailVerification.RequireForLogin,
		},
		Mail:           MailFile{Product: cfg.Mail.Product, BaseURL: cfg.Mail.BaseURL},
		Audit:          AuditFile{Enabled: cfg.Audit.Enabled, BufferSize: cfg.Audit.BufferSize, DropIfFull: cfg.Audit.DropIfFull},
		ProductionMode: cfg.Security.ProductionMode,
		Output:         OutputFile{Format: "table", Colors: true},
	}
}

// Load reads defaults, then the file at path (optional), then AUTHCORE_*
// environment variables, in increasing precedence.
func Load(v *viper.Viper, path string) (File, error) {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return File{}, fmt.Errorf("encode defaults: %w", err)
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return File{}, fmt.Errorf("load defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return File{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var out File
	if err := v.Unmarshal(&out); err != nil {
		return File{}, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

// Engine resolves key files and returns the engine configuration.
func (f File) Engine() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()

	cfg.Token.SigningMethod = f.Token.SigningMethod
	cfg.Token.KeyID = f.Token.KeyID
	cfg.Token.Issuer = f.Token.Issuer
	cfg.Token.Audience = f.Token.Audience
	cfg.Token.Leeway = f.Token.Leeway
	cfg.Token.SessionTTL = f.Token.SessionTTL
	cfg.Token.ChallengeTTL = f.Token.ChallengeTTL
	cfg.Token.RefreshWindow = f.Token.RefreshWindow
	cfg.Token.RefreshTTL = f.Token.RefreshTTL
	cfg.Token.RememberMeTTL = f.Token.RememberMeTTL

	cfg.TOTP = authcore.TOTPConfig{
		Issuer:                  f.TOTP.Issuer,
		Digits:                  f.TOTP.Digits,
		Period:                  f.TOTP.Period,
		Algorithm:               f.TOTP.Algorithm,
		Skew:                    f.TOTP.Skew,
		SecretSize:              f.TOTP.SecretSize,
		EnforceReplayProtection: f.TOTP.ReplayProtection,
		QRCodeSize:              f.TOTP.QRCodeSize,
	}
	cfg.EmailOTP = authcore.EmailOTPConfig{Digits: f.EmailOTP.Digits, TTL: f.EmailOTP.TTL, Subject: f.EmailOTP.Subject}
	cfg.RecoveryCodes = authcore.RecoveryCodesConfig{Count: f.RecoveryCodes.Count, Length: f.RecoveryCodes.Length}
	cfg.Password = authcore.PasswordConfig{
		Memory:         f.Password.Memory,
		Time:           f.Password.Time,
		Parallelism:    f.Password.Parallelism,
		SaltLength:     f.Password.SaltLength,
		KeyLength:      f.Password.KeyLength,
		MinLength:      f.Password.MinLength,
		MaxLength:      f.Password.MaxLength,
		MinClasses:     f.Password.MinClasses,
		UpgradeOnLogin: f.Password.UpgradeOnLogin,
	}
	cfg.PasswordReset = authcore.PasswordResetConfig{Enabled: f.PasswordReset.Enabled, TTL: f.PasswordReset.TTL}
	cfg.EmailVerification = authcore.EmailVerificationConfig{
		Enabled:         f.EmailVerification.Enabled,
		TTL:             f.EmailVerification.TTL,
		RequireForLogin: f.EmailVerification.RequireForLogin,
	}
	cfg.Mail = authcore.MailConfig{Product: f.Mail.Product, BaseURL: f.Mail.BaseURL}
	cfg.Audit = authcore.AuditConfig{Enabled: f.Audit.Enabled, BufferSize: f.Audit.BufferSize, DropIfFull: f.Audit.DropIfFull}
	cfg.Security.ProductionMode = f.ProductionMode

	err := f.loadKeys(&cfg)
	return cfg, err
}

// loadKeys fills the signing and verification keys of cfg from files or the
// HS256 secret.
func (f File) loadKeys(cfg *authcore.Config) error {
	switch strings.ToLower(f.Token.SigningMethod) {
	case "hs256":
		if f.Token.Secret == "" {
			return fmt.Errorf("%w: token.secret is required for hs256 (or set AUTHCORE_TOKEN_SECRET)", ErrKeyMaterial)
		}
		cfg.Token.PrivateKey = []byte(f.Token.Secret)
	default:
		priv, err := readKey("token.private_key_file", f.Token.PrivateKeyFile)
		if err != nil {
			return err
		}
		cfg.Token.PrivateKey = priv
		if f.Token.PublicKeyFile == "" {
			pub, err := derivePublicKey(priv)
			if err != nil {
				return err
			}
			cfg.Token.PublicKey = pub
			break
		}
		pub, err := readKey("token.public_key_file", f.Token.PublicKeyFile)
		if err != nil {
			return err
		}
		cfg.Token.PublicKey = pub
	}

	if len(f.Token.VerifyKeyFiles) > 0 {
		cfg.Token.VerifyKeys = make(map[string][]byte, len(f.Token.VerifyKeyFiles))
		for kid, path := range f.Token.VerifyKeyFiles {
			key, err := readKey("token.verify_key_files."+kid, path)
			if err != nil {
				return err
			}
			cfg.Token.VerifyKeys[kid] = key
		}
	}

	return nil
}

// Redacted returns a copy safe to print.
func (f File) Redacted() File {
	if f.Token.Secret != "" {
		f.Token.Secret = "<redacted>"
	}
	return f
}

// WriteDefault writes the default file to path with 0600 permissions. It
// refuses to overwrite unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readKey(key, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrKeyMaterial, key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return data, nil
}

// derivePublicKey accepts a raw 64-byte ed25519 key or a PKCS#8 PEM block.
func derivePublicKey(priv []byte) ([]byte, error) {
	if len(priv) == ed25519.PrivateKeySize {
		return []byte(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey)), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(priv)
	if err != nil {
		return nil, fmt.Errorf("token.private_key_file: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token.private_key_file: not an ed25519 key")
	}
	return []byte(key.Public().(ed25519.PublicKey)), nil
}
