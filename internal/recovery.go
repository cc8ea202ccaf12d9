package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

const recoverySaltSize = 16

// NewRecoveryCode returns a random code of length characters from
// RecoveryAlphabet, formatted with a dash in the middle.
func NewRecoveryCode(length int) (string, error) {
	if length < 8 || length > 32 {
		return "", errors.New("invalid recovery code length")
	}

	max := big.NewInt(int64(len(RecoveryAlphabet)))
	raw := make([]byte, length)
	for i := range raw {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		raw[i] = RecoveryAlphabet[n.Int64()]
	}

	return FormatRecoveryCode(string(raw)), nil
}

// CanonicalRecoveryCode upper-cases code and drops dashes and spaces.
func CanonicalRecoveryCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func FormatRecoveryCode(code string) string {
	c := CanonicalRecoveryCode(code)
	if len(c) < 2 {
		return c
	}
	half := len(c) / 2
	return c[:half] + "-" + c[half:]
}

// NewRecoveryEntry returns the stored form "salt.hash" of code.
func NewRecoveryEntry(code string) (string, error) {
	salt := make([]byte, recoverySaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltHex := hex.EncodeToString(salt)
	return saltHex + "." + recoveryDigest(salt, CanonicalRecoveryCode(code)), nil
}

// MatchRecoveryEntries compares code against every entry without stopping at
// the first hit and returns the matching entry, or "" when none matches.
func MatchRecoveryEntries(entries []string, code string) string {
	canonical := CanonicalRecoveryCode(code)
	matched := ""
	for _, entry := range entries {
		saltHex, digest, ok := strings.Cut(entry, ".")
		if !ok {
			continue
		}
		salt, err := hex.DecodeString(saltHex)
		if err != nil {
			continue
		}
		want := recoveryDigest(salt, canonical)
		if subtle.ConstantTimeCompare([]byte(want), []byte(digest)) == 1 && matched == "" {
			matched = entry
		}
	}
	return matched
}

func recoveryDigest(salt []byte, canonical string) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}
