package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore-test",
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return m
}

func TestIssueVerifyRoundTripAndExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	for _, ttl := range []time.Duration{time.Second, 15 * time.Minute, 24 * time.Hour} {
		clock.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
		token, err := m.Issue("user-1", Claims{Role: "member", ClubID: "c1"}, ttl)
		require.NoError(t, err)

		claims, err := m.Verify(token)
		require.NoError(t, err, "ttl=%s", ttl)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "member", claims.Role)
		assert.Equal(t, "c1", claims.ClubID)
		assert.Equal(t, StageSession, claims.Stage)
		assert.NotEmpty(t, claims.ID)

		clock.now = clock.now.Add(ttl - time.Second)
		if ttl > time.Second {
			_, err = m.Verify(token)
			require.NoError(t, err, "ttl=%s just before expiry", ttl)
		}

		clock.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC).Add(ttl)
		_, err = m.Verify(token)
		require.ErrorIs(t, err, ErrExpired, "ttl=%s at expiry", ttl)

		var expired *ExpiredError
		require.True(t, errors.As(err, &expired))
		assert.True(t, expired.ExpiresAt.Equal(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC).Add(ttl)))
		assert.Equal(t, "user-1", expired.Claims.Subject)
	}
}

func flipSignatureBit(t *testing.T, token string, bit int) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[(bit/8)%len(sig)] ^= 1 << (bit % 8)
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}

func TestTamperedSignatureIsBadSignature(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	token, err := m.Issue("user-1", Claims{}, time.Hour)
	require.NoError(t, err)

	for bit := 0; bit < 512; bit += 7 {
		_, err := m.Verify(flipSignatureBit(t, token, bit))
		require.ErrorIs(t, err, ErrBadSignature, "bit=%d", bit)
		require.NotErrorIs(t, err, ErrMalformed)
	}

	// An expired token with a broken signature still reports the signature.
	clock.now = clock.now.Add(2 * time.Hour)
	_, err = m.Verify(flipSignatureBit(t, token, 3))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestMalformedTokens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	for _, input := range []string{"", "not.a.jwt", "abc", "eyJhbGciOiJFZERTQSJ9.%%%.sig"} {
		_, err := m.Verify(input)
		require.ErrorIs(t, err, ErrMalformed, "input=%q", input)
	}
}

func TestWrongAlgorithmIsBadSignature(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	signed, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	require.NoError(t, err)

	_, err = m.Verify(signed)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestMissingExpiryIsMalformed(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: priv.Public().(ed25519.PublicKey)})
	require.NoError(t, err)

	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "u"}})
	signed, err := tok.SignedString(priv)
	require.NoError(t, err)

	_, err = m.Verify(signed)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestKeyIDSwapWithoutCallSiteChanges(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)
	keys := map[string][]byte{"k1": pub1, "k2": pub2}

	old, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv1, KeyID: "k1", VerifyKeys: keys})
	require.NoError(t, err)
	next, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv2, KeyID: "k2", VerifyKeys: keys})
	require.NoError(t, err)

	oldToken, err := old.Issue("u", Claims{}, time.Minute)
	require.NoError(t, err)
	_, err = next.Verify(oldToken)
	require.NoError(t, err, "tokens signed under the previous kid must keep verifying")

	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	tok.Header["kid"] = "k3"
	unknown, err := tok.SignedString(priv1)
	require.NoError(t, err)
	_, err = next.Verify(unknown)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestHS256IssuerAudience(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authcore",
		Audience:      "web",
		Now:           clock.Now,
	})
	require.NoError(t, err)

	token, err := m.Issue("u", Claims{Stage: StageChallenge}, time.Minute)
	require.NoError(t, err)
	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, StageChallenge, claims.Stage)

	other, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authcore",
		Audience:      "mobile",
		Now:           clock.Now,
	})
	require.NoError(t, err)
	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{SigningMethod: "rs256", PrivateKey: []byte("x")})
	require.Error(t, err)
	_, err = NewManager(Config{SigningMethod: MethodHS256})
	require.Error(t, err)
	_, err = NewManager(Config{SigningMethod: MethodEd25519})
	require.Error(t, err)
	_, err = NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour})
	require.Error(t, err)

	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")})
	require.NoError(t, err)
	_, err = m.Issue("", Claims{}, time.Minute)
	require.Error(t, err)
	_, err = m.Issue("u", Claims{}, 0)
	require.Error(t, err)
}

func FuzzVerify(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := m.Issue("u", Claims{}, time.Minute)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := m.Verify(input)
		if err != nil {
			if !errors.Is(err, ErrMalformed) && !errors.Is(err, ErrBadSignature) && !errors.Is(err, ErrExpired) {
				t.Fatalf("unclassified error: %v", err)
			}
			return
		}
		if claims == nil {
			t.Fatal("Verify returned nil claims without error")
		}
	})
}
