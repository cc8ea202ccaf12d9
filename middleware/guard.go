package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

// ExpiresAtHeader carries the original expiry (RFC 3339) on token_expired
// responses so clients can prompt a fresh login.
const ExpiresAtHeader = "X-Token-Expires-At"

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// Guard admits requests whose bearer token authenticates fully, including a
// completed second factor where the user has one enabled.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(res *authcore.AuthResult) (int, string) {
		if res.State == authcore.StateAuthenticated {
			return 0, ""
		}
		return http.StatusUnauthorized, string(authcore.ReasonSecondFactorRequired)
	})
}

type admitFunc func(res *authcore.AuthResult) (status int, reason string)

func guard(engine *authcore.Engine, admit admitFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authcore.WithUserAgent(authcore.WithClientIP(r.Context(), clientIP(r)), r.UserAgent())
			res, err := engine.Authenticate(ctx, token)
			if err != nil {
				if res != nil && res.Expired {
					w.Header().Set(ExpiresAtHeader, res.ExpiresAt.UTC().Format(time.RFC3339))
					http.Error(w, string(authcore.ReasonTokenExpired), http.StatusUnauthorized)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if status, reason := admit(res); status != 0 {
				http.Error(w, reason, status)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
