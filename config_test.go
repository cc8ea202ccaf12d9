package authcore

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/credential/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with key", mutate: func(c *Config) {}},
		{name: "hs256", mutate: func(c *Config) {
			c.Token.SigningMethod = "hs256"
			c.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
		}},
		{name: "unknown signing method", mutate: func(c *Config) { c.Token.SigningMethod = "rs256" }, wantErr: "SigningMethod"},
		{name: "missing key", mutate: func(c *Config) { c.Token.PrivateKey = nil }, wantErr: "PrivateKey"},
		{name: "challenge longer than session", mutate: func(c *Config) { c.Token.ChallengeTTL = time.Hour }, wantErr: "ChallengeTTL"},
		{name: "leeway too large", mutate: func(c *Config) { c.Token.Leeway = 10 * time.Minute }, wantErr: "Leeway"},
		{name: "refresh window beyond session", mutate: func(c *Config) { c.Token.RefreshWindow = time.Hour }, wantErr: "RefreshWindow"},
		{name: "refresh ttl negative", mutate: func(c *Config) { c.Token.RefreshTTL = -time.Second }, wantErr: "RefreshTTL"},
		{name: "refresh ttl shorter than session", mutate: func(c *Config) { c.Token.RefreshTTL = time.Minute }, wantErr: "RefreshTTL"},
		{name: "remember me shorter than refresh", mutate: func(c *Config) { c.Token.RememberMeTTL = time.Hour }, wantErr: "RememberMeTTL"},
		{name: "refresh tokens disabled", mutate: func(c *Config) {
			c.Token.RefreshTTL = 0
			c.Token.RememberMeTTL = 0
		}},
		{name: "empty verify kid", mutate: func(c *Config) { c.Token.VerifyKeys = map[string][]byte{"": []byte("k")} }, wantErr: "VerifyKeys"},
		{name: "issuer with colon", mutate: func(c *Config) { c.TOTP.Issuer = "a:b" }, wantErr: "Issuer"},
		{name: "totp digits", mutate: func(c *Config) { c.TOTP.Digits = 7 }, wantErr: "Digits"},
		{name: "totp skew", mutate: func(c *Config) { c.TOTP.Skew = 5 }, wantErr: "Skew"},
		{name: "totp algorithm", mutate: func(c *Config) { c.TOTP.Algorithm = "MD5" }, wantErr: "Algorithm"},
		{name: "otp ttl", mutate: func(c *Config) { c.EmailOTP.TTL = 0 }, wantErr: "EmailOTP TTL"},
		{name: "recovery count", mutate: func(c *Config) { c.RecoveryCodes.Count = 0 }, wantErr: "Count"},
		{name: "recovery length", mutate: func(c *Config) { c.RecoveryCodes.Length = 4 }, wantErr: "Length"},
		{name: "policy bounds", mutate: func(c *Config) { c.Password.MaxLength = 4 }, wantErr: "MaxLength"},
		{name: "gated login without verification", mutate: func(c *Config) {
			c.EmailVerification.Enabled = false
			c.EmailVerification.RequireForLogin = true
		}, wantErr: "RequireForLogin"},
		{name: "audit buffer", mutate: func(c *Config) { c.Audit.BufferSize = 0 }, wantErr: "BufferSize"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfigValidateProductionMode(t *testing.T) {
	base := func(t *testing.T) Config {
		cfg := testConfig(t)
		cfg.Security.ProductionMode = true
		cfg.Password.Memory = 64 * 1024
		cfg.Password.Time = 3
		cfg.Mail.BaseURL = "https://app.example.com"
		return cfg
	}

	cfg := base(t)
	require.NoError(t, cfg.Validate())

	cfg = base(t)
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("weak-key")
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "256 bits"))

	cfg = base(t)
	cfg.Password.Memory = 32 * 1024
	assert.ErrorContains(t, cfg.Validate(), "Memory")

	cfg = base(t)
	cfg.TOTP.EnforceReplayProtection = false
	assert.ErrorContains(t, cfg.Validate(), "EnforceReplayProtection")

	cfg = base(t)
	cfg.EmailOTP.TTL = time.Hour
	assert.ErrorContains(t, cfg.Validate(), "EmailOTP TTL")

	cfg = base(t)
	cfg.Mail.BaseURL = "http://app.example.com"
	assert.ErrorContains(t, cfg.Validate(), "https")

	// The same relaxed settings pass outside production.
	cfg = base(t)
	cfg.Security.ProductionMode = false
	cfg.Password.Memory = 8 * 1024
	cfg.TOTP.EnforceReplayProtection = false
	assert.NoError(t, cfg.Validate())
}

func TestBuildConfigImmutableAfterBuild(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token.VerifyKeys = map[string][]byte{"old": []byte("0123456789abcdef0123456789abcdef")}

	engine, err := New().WithConfig(cfg).WithCredentialStore(memory.New()).Build()
	require.NoError(t, err)
	defer engine.Close()

	before := engine.config.Token.PrivateKey[0]
	cfg.Token.PrivateKey[0] ^= 0xff
	cfg.Token.VerifyKeys["old"][0] = 'X'

	assert.Equal(t, before, engine.config.Token.PrivateKey[0])
	assert.Equal(t, byte('0'), engine.config.Token.VerifyKeys["old"][0])
}

func TestBuilderRequirements(t *testing.T) {
	_, err := New().WithConfig(testConfig(t)).Build()
	assert.ErrorContains(t, err, "credential store required")

	_, err = New().WithCredentialStore(memory.New()).Build()
	assert.ErrorContains(t, err, "PrivateKey")

	b := New().WithConfig(testConfig(t)).WithCredentialStore(memory.New())
	engine, err := b.Build()
	require.NoError(t, err)
	defer engine.Close()
	_, err = b.Build()
	assert.ErrorContains(t, err, "builder already used")
}

func TestSecurityReport(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Token.VerifyKeys = map[string][]byte{"old": []byte("k")}
	})

	report := env.engine.SecurityReport()
	assert.Equal(t, "ed25519", report.SigningAlgorithm)
	assert.Equal(t, "k1", report.KeyID)
	assert.Equal(t, 1, report.RotationKeys)
	assert.Equal(t, 15*time.Minute, report.SessionTTL)
	assert.Equal(t, 24*time.Hour, report.RefreshTTL)
	assert.Equal(t, 7*24*time.Hour, report.RememberMeTTL)
	assert.Equal(t, 6, report.TOTPDigits)
	assert.Equal(t, 1, report.TOTPSkew)
	assert.True(t, report.TOTPReplayProtection)
	assert.Equal(t, 10, report.RecoveryCodeCount)
	assert.Equal(t, PasswordPolicyReport{MinLength: 8, MaxLength: 128, MinClasses: 3}, report.PasswordPolicy)
	assert.True(t, report.AuditActive)
	assert.True(t, report.PasswordResetActive)

	var nilEngine *Engine
	assert.Equal(t, SecurityReport{}, nilEngine.SecurityReport())
}
