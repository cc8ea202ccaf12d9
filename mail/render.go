package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Purpose selects the wording and subject of an OTP message.
type Purpose string

const (
	PurposeVerification  Purpose = "verification"
	PurposeTwoFactor     Purpose = "2fa"
	PurposeLogin         Purpose = "login"
	PurposePasswordReset Purpose = "password-reset"
)

// RenderConfig customizes Renderer output.
type RenderConfig struct {
	Product string
	// BaseURL prefixes verification and reset links.
	BaseURL string
	// OTPSubject overrides the subject of every OTP message when set.
	OTPSubject string
}

// Renderer produces subject and HTML body pairs.
type Renderer struct {
	cfg RenderConfig
}

func NewRenderer(cfg RenderConfig) *Renderer {
	if cfg.Product == "" {
		cfg.Product = "Zenith"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}
	return &Renderer{cfg: cfg}
}

func (r *Renderer) OTP(code string, purpose Purpose, ttl time.Duration) (string, string, error) {
	subject := r.cfg.OTPSubject
	if subject == "" {
		subject = r.otpSubject(purpose)
	}
	body, err := r.execute("otp.html", map[string]any{
		"Product":   r.cfg.Product,
		"Purpose":   purposeText(purpose),
		"Code":      code,
		"ExpiresIn": humanDuration(ttl),
	})
	return subject, body, err
}

func (r *Renderer) Verification(token string, ttl time.Duration) (string, string, error) {
	body, err := r.execute("verify_email.html", map[string]any{
		"Product":   r.cfg.Product,
		"Link":      r.link("/verify-email", token),
		"ExpiresIn": humanDuration(ttl),
	})
	return fmt.Sprintf("Welcome to %s! Verify Your Email", r.cfg.Product), body, err
}

func (r *Renderer) PasswordReset(token string, ttl time.Duration) (string, string, error) {
	body, err := r.execute("password_reset.html", map[string]any{
		"Product":   r.cfg.Product,
		"Link":      r.link("/reset-password", token),
		"ExpiresIn": humanDuration(ttl),
	})
	return fmt.Sprintf("Reset Your %s Password", r.cfg.Product), body, err
}

func (r *Renderer) otpSubject(purpose Purpose) string {
	switch purpose {
	case PurposeTwoFactor:
		return fmt.Sprintf("Your %s 2FA Code", r.cfg.Product)
	case PurposeLogin:
		return fmt.Sprintf("Your %s Login Code", r.cfg.Product)
	case PurposePasswordReset:
		return fmt.Sprintf("Your %s Password Reset Code", r.cfg.Product)
	default:
		return fmt.Sprintf("Your %s Verification Code", r.cfg.Product)
	}
}

func (r *Renderer) link(path, token string) template.URL {
	return template.URL(r.cfg.BaseURL + path + "?token=" + url.QueryEscape(token))
}

func (r *Renderer) execute(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func purposeText(p Purpose) string {
	switch p {
	case PurposeTwoFactor, PurposeLogin:
		return "finish signing in"
	case PurposePasswordReset:
		return "reset your password"
	default:
		return "verify your email address"
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a few minutes"
	case d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute:
		m := int(d.Round(time.Minute) / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
}
