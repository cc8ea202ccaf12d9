package internal

import (
	"strings"
	"testing"
)

func TestSecretTokenRoundTrip(t *testing.T) {
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret error: %v", err)
	}

	for _, id := range []string{"1", "7f0c8a1e-55c2-4d0e-9a53-8d9e2d7f9a10", strings.Repeat("x", 255)} {
		token, err := EncodeSecretToken(id, secret)
		if err != nil {
			t.Fatalf("EncodeSecretToken(%q) error: %v", id, err)
		}
		gotID, gotSecret, err := DecodeSecretToken(token)
		if err != nil {
			t.Fatalf("DecodeSecretToken error: %v", err)
		}
		if gotID != id || gotSecret != secret {
			t.Fatalf("round trip mismatch for %q", id)
		}
	}

	if _, err := EncodeSecretToken("", secret); err == nil {
		t.Fatal("expected empty id to be rejected")
	}
	if _, err := EncodeSecretToken(strings.Repeat("x", 256), secret); err == nil {
		t.Fatal("expected oversized id to be rejected")
	}
}

func TestHashCodeScoped(t *testing.T) {
	if HashCode("u1", "123456") == HashCode("u2", "123456") {
		t.Fatal("expected scope to change the hash")
	}
	if HashCode("u1", "123456") != HashCode("u1", "123456") {
		t.Fatal("expected hash to be deterministic")
	}
}

func TestNewOTP(t *testing.T) {
	for _, digits := range []int{6, 8, 10} {
		otp, err := NewOTP(digits)
		if err != nil {
			t.Fatalf("NewOTP(%d) error: %v", digits, err)
		}
		if len(otp) != digits {
			t.Fatalf("NewOTP(%d) length = %d", digits, len(otp))
		}
		for _, c := range otp {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit %q in %q", c, otp)
			}
		}
	}
	if _, err := NewOTP(5); err == nil {
		t.Fatal("expected 5 digits to be rejected")
	}
}

func FuzzDecodeSecretToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("!!!not-base64!!!")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	if secret, err := NewSecret(); err == nil {
		if token, err := EncodeSecretToken("user-1", secret); err == nil {
			f.Add(token)
		}
	}

	f.Fuzz(func(t *testing.T, input string) {
		id, secret, err := DecodeSecretToken(input)
		if err != nil {
			return
		}

		reEncoded, err := EncodeSecretToken(id, secret)
		if err != nil {
			t.Fatalf("re-encode failed for decoded id %q: %v", id, err)
		}
		id2, secret2, err := DecodeSecretToken(reEncoded)
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if id2 != id || secret2 != secret {
			t.Error("roundtrip mismatch")
		}
	})
}
