package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireVerifiedEmail behaves like Guard and additionally rejects users
// whose email address is not verified with 403.
func RequireVerifiedEmail(engine *authcore.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(res *authcore.AuthResult) (int, string) {
		if res.State != authcore.StateAuthenticated {
			return http.StatusUnauthorized, string(authcore.ReasonSecondFactorRequired)
		}
		if !res.User.EmailVerified {
			return http.StatusForbidden, string(authcore.ReasonEmailUnverified)
		}
		return 0, ""
	})
}
