package authcore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/credential/memory"
	"github.com/MrEthical07/authcore/jwt"
)

func newBenchEngine(b *testing.B) (*Engine, *memory.Store) {
	b.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		b.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	store := memory.New()
	engine, err := New().WithConfig(cfg).WithCredentialStore(store).Build()
	if err != nil {
		b.Fatalf("build engine: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine, store
}

func benchSession(b *testing.B, engine *Engine, store *memory.Store) string {
	b.Helper()
	hash, err := engine.HashPassword(testPassword)
	if err != nil {
		b.Fatalf("hash: %v", err)
	}
	rec, err := store.Create(context.Background(), credential.Record{Email: "bench@example.com", PasswordHash: hash})
	if err != nil {
		b.Fatalf("create user: %v", err)
	}
	token, _, err := engine.issueToken(rec, jwt.StageSession, []string{AMRPassword})
	if err != nil {
		b.Fatalf("issue: %v", err)
	}
	return token
}

func BenchmarkAuthenticate(b *testing.B) {
	engine, store := newBenchEngine(b)
	token := benchSession(b, engine, store)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Authenticate(ctx, token); err != nil {
			b.Fatalf("authenticate: %v", err)
		}
	}
}

func BenchmarkAuthenticateParallel(b *testing.B) {
	engine, store := newBenchEngine(b)
	token := benchSession(b, engine, store)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.Authenticate(ctx, token); err != nil {
				b.Errorf("authenticate: %v", err)
				return
			}
		}
	})
}

func BenchmarkTOTPVerifyCode(b *testing.B) {
	m := newTOTPManager(DefaultConfig().TOTP)
	const secret = "JBSWY3DPEHPK3PXP"
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	code, err := m.Code(secret, now)
	if err != nil {
		b.Fatalf("code: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if ok, _, _ := m.VerifyCode(secret, code, now); !ok {
			b.Fatal("code rejected")
		}
	}
}
