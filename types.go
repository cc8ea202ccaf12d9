package authcore

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/credential"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/rs/zerolog"
)

// Method tags a second-factor method. Callers always name the method they
// are submitting a value for; the engine never guesses from the value's shape.
type Method uint8

const (
	// MethodTOTP is an authenticator-app code.
	MethodTOTP Method = iota + 1
	// MethodEmailOTP is a code delivered by email.
	MethodEmailOTP
	// MethodRecoveryCode is a single-use recovery code.
	MethodRecoveryCode
)

func (m Method) String() string {
	switch m {
	case MethodTOTP:
		return "totp"
	case MethodEmailOTP:
		return "email_otp"
	case MethodRecoveryCode:
		return "recovery_code"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// ParseMethod accepts the canonical names plus the aliases used by existing
// clients ("app", "email", "recovery", "backup").
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "totp", "app":
		return MethodTOTP, nil
	case "email_otp", "email":
		return MethodEmailOTP, nil
	case "recovery_code", "recovery", "backup":
		return MethodRecoveryCode, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// State is where a request stands in the authentication state machine.
type State uint8

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateSecondFactorRequired
	StateChallenged
	StateTokenInvalid
	StateTokenExpired
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateSecondFactorRequired:
		return "second_factor_required"
	case StateChallenged:
		return "challenged"
	case StateTokenInvalid:
		return "token_invalid"
	case StateTokenExpired:
		return "token_expired"
	default:
		return "unauthenticated"
	}
}

// AuthResult is returned by [Engine.Authenticate].
//
// On expiry, Expired is true and ExpiresAt carries the original expiry so
// the caller can prompt a fresh login instead of a generic failure.
type AuthResult struct {
	State  State
	User   credential.Record
	Claims *jwt.Claims

	Expired   bool
	ExpiresAt time.Time
	Reason    Reason
}

// LoginResult is returned by the login, challenge and refresh flows.
// Exactly one of SessionToken and ChallengeToken is set. RefreshToken comes
// with new sessions when refresh tokens are enabled; redeeming a refresh
// token leaves it empty and the caller keeps the one it has.
type LoginResult struct {
	UserID         string
	SessionToken   string
	ChallengeToken string
	ExpiresAt      time.Time

	RefreshToken     string
	RefreshExpiresAt time.Time

	SecondFactorRequired bool
	Methods              []Method
}

// TOTPEnrollment is the material shown to a user starting authenticator setup.
type TOTPEnrollment struct {
	Secret string
	URI    string
	// QRCode is a data:image/png;base64 URL of URI.
	QRCode string
}

// TwoFactorStatus summarizes the second-factor state of one user.
type TwoFactorStatus struct {
	TOTPEnabled            bool
	TOTPPending            bool
	EmailOTPEnabled        bool
	RecoveryCodesRemaining int
	Methods                []Method
}

// Clock supplies the current time. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AuditEvent is one emitted audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events on a channel; read them with Events.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZerologSink logs events.
type ZerologSink = internalaudit.ZerologSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return internalaudit.NewZerologSink(logger)
}
