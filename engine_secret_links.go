package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal"
)

// secretLink describes one emailed single-use link: where its hash and
// expiry live on the record and which error reports a bad link.
type secretLink struct {
	hashField    credential.Field
	expiresField credential.Field
	ttl          time.Duration
	invalid      error
}

func (e *Engine) passwordResetLink() secretLink {
	return secretLink{
		hashField:    credential.FieldPasswordResetHash,
		expiresField: credential.FieldPasswordResetExpiresAt,
		ttl:          e.config.PasswordReset.TTL,
		invalid:      ErrPasswordResetInvalid,
	}
}

func (e *Engine) emailVerificationLink() secretLink {
	return secretLink{
		hashField:    credential.FieldEmailVerificationHash,
		expiresField: credential.FieldEmailVerificationExpiresAt,
		ttl:          e.config.EmailVerification.TTL,
		invalid:      ErrEmailVerificationInvalid,
	}
}

// issue stores the hash of a fresh secret on the user and returns the token
// carrying it. A previous link of the same kind stops working.
func (l secretLink) issue(ctx context.Context, e *Engine, userID string) (string, error) {
	secret, err := internal.NewSecret()
	if err != nil {
		return "", fmt.Errorf("generate link secret: %w", err)
	}
	token, err := internal.EncodeSecretToken(userID, secret)
	if err != nil {
		return "", err
	}
	if err := e.updateFields(ctx, userID, credential.Fields{
		l.hashField:    internal.HashSecret(secret),
		l.expiresField: e.now().Add(l.ttl),
	}); err != nil {
		return "", err
	}
	return token, nil
}

// redeem checks token and, in one conditional update, clears the pending
// link and applies fields. It returns the user id the token was issued for.
func (l secretLink) redeem(ctx context.Context, e *Engine, token string, fields credential.Fields) (string, error) {
	userID, secret, err := internal.DecodeSecretToken(token)
	if err != nil {
		return "", l.invalid
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", l.invalid
		}
		return "", err
	}

	stored, _ := user.Value(l.hashField)
	storedHash, _ := stored.(string)
	hash := internal.HashSecret(secret)
	if storedHash == "" || subtle.ConstantTimeCompare([]byte(hash), []byte(storedHash)) != 1 {
		return user.ID, l.invalid
	}

	update := credential.Fields{l.hashField: nil, l.expiresField: nil}
	for f, v := range fields {
		update[f] = v
	}
	now := e.now()
	applied, err := e.consume(ctx, user.ID, update, credential.Condition{
		credential.Equals(l.hashField, hash),
		credential.After(l.expiresField, now),
	})
	if err != nil {
		return user.ID, err
	}
	if !applied {
		return user.ID, fmt.Errorf("%w: expired or already used", l.invalid)
	}
	return user.ID, nil
}
