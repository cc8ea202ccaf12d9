package authcore

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

type totpManager struct {
	config TOTPConfig
	opts   totp.ValidateOpts
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &totpManager{
		config: cfg,
		opts: totp.ValidateOpts{
			Period:    uint(cfg.Period),
			Digits:    otp.Digits(cfg.Digits),
			Algorithm: otpAlgorithm(cfg.Algorithm),
		},
	}
}

// GenerateSecret returns a fresh base32 secret (no padding).
func (m *totpManager) GenerateSecret(account string) (string, error) {
	if account == "" || strings.Contains(account, ":") {
		account = "user"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      uint(m.config.Period),
		SecretSize:  uint(m.config.SecretSize),
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   otpAlgorithm(m.config.Algorithm),
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// ProvisionURI formats the otpauth:// URI authenticator apps scan.
func (m *totpManager) ProvisionURI(secret, account, issuer string) string {
	if issuer == "" {
		issuer = m.config.Issuer
	}
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Code returns the code for the time step containing t.
func (m *totpManager) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, m.opts)
}

// VerifyCode checks code against every step in now±Skew, comparing each in
// constant time and without stopping early, and returns the matched step.
func (m *totpManager) VerifyCode(secret, code string, now time.Time) (bool, int64, error) {
	if m == nil {
		return false, 0, ErrEngineNotReady
	}
	if secret == "" {
		return false, 0, errors.New("empty totp secret")
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isNumericString(trimmed) {
		return false, 0, nil
	}

	period := int64(m.config.Period)
	baseCounter := now.Unix() / period
	matched := false
	var matchedCounter int64
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := m.Code(secret, time.Unix(counter*period, 0))
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 && !matched {
			matched = true
			matchedCounter = counter
		}
	}

	return matched, matchedCounter, nil
}

// QRCode renders payload as a PNG data URL.
func QRCode(payload string, size int) (string, error) {
	if payload == "" {
		return "", errors.New("qr payload is empty")
	}
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("qr encode: %w", err)
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return "", fmt.Errorf("qr scale: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", fmt.Errorf("qr png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func otpAlgorithm(name string) otp.Algorithm {
	switch strings.ToUpper(name) {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
