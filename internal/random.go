package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	SecretSize = 32

	maxTokenIDLen = 255
)

// RecoveryAlphabet omits the look-alike characters 0, O, 1 and I.
const RecoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var errInvalidToken = errors.New("invalid secret token")

func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashSecret(secret [SecretSize]byte) string {
	sum := sha256.Sum256(secret[:])
	return hex.EncodeToString(sum[:])
}

// EncodeSecretToken packs id and secret into a base64url token:
// one length byte, the id bytes, then the secret.
func EncodeSecretToken(id string, secret [SecretSize]byte) (string, error) {
	if id == "" || len(id) > maxTokenIDLen {
		return "", errInvalidToken
	}

	raw := make([]byte, 0, 1+len(id)+SecretSize)
	raw = append(raw, byte(len(id)))
	raw = append(raw, id...)
	raw = append(raw, secret[:]...)

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeSecretToken(token string) (string, [SecretSize]byte, error) {
	var secret [SecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, errInvalidToken
	}
	if len(raw) < 2+SecretSize {
		return "", secret, errInvalidToken
	}

	n := int(raw[0])
	if n == 0 || len(raw) != 1+n+SecretSize {
		return "", secret, errInvalidToken
	}

	copy(secret[:], raw[1+n:])
	return string(raw[1 : 1+n]), secret, nil
}

// HashCode binds a short code to scope (typically the user id) so equal codes
// of different users never share a stored hash.
func HashCode(scope, code string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
