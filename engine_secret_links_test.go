package authcore

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newPassword = "Brand-New-Secret-7"

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com")

	require.NoError(t, env.engine.RequestPasswordReset(ctx, "alice@example.com"))
	msg, ok := env.mail.Last()
	require.True(t, ok)
	assert.Equal(t, "Reset Your Zenith Password", msg.Subject)
	assert.Contains(t, msg.Body, "/reset-password?token=")
	token := env.lastLinkToken(t)
	assert.NotEqual(t, token, env.user(t, u.ID).PasswordResetHash)

	err := env.engine.ConfirmPasswordReset(ctx, token, "short")
	require.ErrorIs(t, err, ErrPasswordPolicy)

	require.NoError(t, env.engine.ConfirmPasswordReset(ctx, token, newPassword))
	assert.ErrorIs(t, env.engine.ConfirmPasswordReset(ctx, token, newPassword), ErrPasswordResetInvalid)

	_, err = env.engine.Login(ctx, "alice@example.com", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.engine.Login(ctx, "alice@example.com", newPassword)
	require.NoError(t, err)

	rec := env.user(t, u.ID)
	assert.Empty(t, rec.PasswordResetHash)
	assert.True(t, rec.PasswordResetExpiresAt.IsZero())
}

func TestPasswordResetExpiryAndReplacement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com")

	require.NoError(t, env.engine.RequestPasswordReset(ctx, "alice@example.com"))
	first := env.lastLinkToken(t)
	require.NoError(t, env.engine.RequestPasswordReset(ctx, "alice@example.com"))
	second := env.lastLinkToken(t)

	assert.ErrorIs(t, env.engine.ConfirmPasswordReset(ctx, first, newPassword), ErrPasswordResetInvalid)

	env.clock.Advance(time.Hour)
	err := env.engine.ConfirmPasswordReset(ctx, second, newPassword)
	require.ErrorIs(t, err, ErrPasswordResetInvalid)
	assert.Equal(t, ReasonLinkInvalid, ReasonFor(err))
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.engine.RequestPasswordReset(context.Background(), "nobody@example.com"))
	assert.Empty(t, env.mail.Messages())

	assert.ErrorIs(t, env.engine.ConfirmPasswordReset(context.Background(), "not-a-token", newPassword), ErrPasswordResetInvalid)
}

func TestPasswordResetDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.PasswordReset.Enabled = false })

	assert.ErrorIs(t, env.engine.RequestPasswordReset(context.Background(), "alice@example.com"), ErrPasswordResetDisabled)
	assert.ErrorIs(t, env.engine.ConfirmPasswordReset(context.Background(), "x", newPassword), ErrPasswordResetDisabled)
}

func TestEmailVerificationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", func(r *credential.Record) { r.EmailVerified = false })

	require.NoError(t, env.engine.RequestEmailVerification(ctx, "alice@example.com"))
	msg, ok := env.mail.Last()
	require.True(t, ok)
	assert.Equal(t, "Welcome to Zenith! Verify Your Email", msg.Subject)
	token := env.lastLinkToken(t)

	require.NoError(t, env.engine.ConfirmEmailVerification(ctx, token))
	assert.True(t, env.user(t, u.ID).EmailVerified)
	assert.ErrorIs(t, env.engine.ConfirmEmailVerification(ctx, token), ErrEmailVerificationInvalid)

	// Verified addresses are not mailed again.
	require.NoError(t, env.engine.RequestEmailVerification(ctx, "alice@example.com"))
	assert.Len(t, env.mail.Messages(), 1)
}

func TestEmailVerificationExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", func(r *credential.Record) { r.EmailVerified = false })

	require.NoError(t, env.engine.RequestEmailVerification(ctx, "alice@example.com"))
	token := env.lastLinkToken(t)

	env.clock.Advance(24 * time.Hour)
	assert.ErrorIs(t, env.engine.ConfirmEmailVerification(ctx, token), ErrEmailVerificationInvalid)
	assert.False(t, env.user(t, u.ID).EmailVerified)
}

func TestSecretLinkTokensAreNotInterchangeable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com", func(r *credential.Record) { r.EmailVerified = false })

	require.NoError(t, env.engine.RequestEmailVerification(ctx, "alice@example.com"))
	verifyToken := env.lastLinkToken(t)

	assert.ErrorIs(t, env.engine.ConfirmPasswordReset(ctx, verifyToken, newPassword), ErrPasswordResetInvalid)
	require.NoError(t, env.engine.ConfirmEmailVerification(ctx, verifyToken))
}

func TestPasswordResetConcurrentConfirm(t *testing.T) {
	for name, newStore := range raceStores {
		t.Run(name, func(t *testing.T) {
			env := newTestEnvWithStore(t, newStore(t))
			ctx := context.Background()
			u := env.createUser(t, "alice@example.com")
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			candidates := []string{"Brand-New-Secret-1", "Brand-New-Secret-2", "Brand-New-Secret-3"}

			for round := 0; round < 5; round++ {
				require.NoError(t, env.engine.RequestPasswordReset(ctx, "alice@example.com"))
				token := env.lastLinkToken(t)

				results := race(rng, len(candidates), func(i int) error {
					return env.engine.ConfirmPasswordReset(ctx, token, candidates[i])
				})

				winner := -1
				for i, err := range results {
					if err == nil {
						require.Equal(t, -1, winner, "round %d: two resets accepted", round)
						winner = i
						continue
					}
					assert.ErrorIs(t, err, ErrPasswordResetInvalid)
				}
				require.NotEqual(t, -1, winner, "round %d", round)

				rec := env.user(t, u.ID)
				assert.Empty(t, rec.PasswordResetHash)
				ok, err := env.engine.passwordHash.Verify(candidates[winner], rec.PasswordHash)
				require.NoError(t, err)
				assert.True(t, ok, "round %d: stored hash belongs to the accepted reset", round)
			}
		})
	}
}
