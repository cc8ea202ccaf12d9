package authcore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/credential/memory"
	"github.com/MrEthical07/authcore/mail"
	"github.com/stretchr/testify/require"
)

const testPassword = "Correct-Horse-9"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	// Aligned to a 30 second TOTP step.
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  credential.Store
	mail   *mail.Recorder
	clock  *testClock
	audit  *ChannelSink
}

type userCreator interface {
	Create(ctx context.Context, rec credential.Record) (credential.Record, error)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Token.KeyID = "k1"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.Enabled = true
	cfg.EmailVerification.Enabled = true
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 256
	cfg.Audit.DropIfFull = true
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memory.New(), mutate...)
}

func newTestEnvWithStore(t *testing.T, store credential.Store, mutate ...func(*Config)) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(&cfg)
	}

	env := &testEnv{
		store: store,
		mail:  &mail.Recorder{},
		clock: newTestClock(),
		audit: NewChannelSink(4096),
	}
	engine, err := New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithMailSender(env.mail).
		WithClock(env.clock).
		WithAuditSink(env.audit).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// createUser stores a verified user with testPassword.
func (env *testEnv) createUser(t *testing.T, email string, mutate ...func(*credential.Record)) credential.Record {
	t.Helper()
	hash, err := env.engine.HashPassword(testPassword)
	require.NoError(t, err)

	rec := credential.Record{
		Email:         email,
		PasswordHash:  hash,
		Role:          "member",
		ClubID:        "club-1",
		EmailVerified: true,
	}
	for _, fn := range mutate {
		fn(&rec)
	}

	creator, ok := env.store.(userCreator)
	require.True(t, ok, "store cannot create users")
	created, err := creator.Create(context.Background(), rec)
	require.NoError(t, err)
	return created
}

func (env *testEnv) user(t *testing.T, id string) credential.Record {
	t.Helper()
	rec, err := env.store.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return rec
}

// enrollTOTP runs the enrollment flow and returns the active secret.
func (env *testEnv) enrollTOTP(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()
	secret, err := env.engine.GenerateTOTPSecret(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, env.engine.ConfirmTOTP(ctx, userID, env.totpCode(t, secret, 0)))
	return secret
}

// totpCode returns the code for the time step offset steps from now.
func (env *testEnv) totpCode(t *testing.T, secret string, steps int) string {
	t.Helper()
	period := time.Duration(env.engine.config.TOTP.Period) * time.Second
	code, err := env.engine.totp.Code(secret, env.clock.Now().Add(time.Duration(steps)*period))
	require.NoError(t, err)
	return code
}

var (
	otpPattern   = regexp.MustCompile(`bold;">(\d+)</p>`)
	tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

func (env *testEnv) lastOTP(t *testing.T) string {
	t.Helper()
	msg, ok := env.mail.Last()
	require.True(t, ok, "no message sent")
	m := otpPattern.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no code in %q", msg.Body)
	return m[1]
}

func (env *testEnv) lastLinkToken(t *testing.T) string {
	t.Helper()
	msg, ok := env.mail.Last()
	require.True(t, ok, "no message sent")
	m := tokenPattern.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no link in %q", msg.Body)
	return m[1]
}

// auditEvents closes the engine and returns everything it emitted.
func (env *testEnv) auditEvents() []AuditEvent {
	env.engine.Close()
	var events []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventTypes(events []AuditEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.EventType
	}
	return out
}
