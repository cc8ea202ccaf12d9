package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireChallenge admits only requests still waiting on a second factor:
// challenge tokens from Login, or sessions of users who enabled a second
// factor after signing in. Routes that complete the challenge through
// [authcore.Engine.CompleteLogin] sit behind it.
func RequireChallenge(engine *authcore.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(res *authcore.AuthResult) (int, string) {
		switch res.State {
		case authcore.StateChallenged, authcore.StateSecondFactorRequired:
			return 0, ""
		default:
			return http.StatusConflict, "second_factor_not_pending"
		}
	})
}
