package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the lookup key.
	ErrNotFound = errors.New("credential record not found")
	// ErrUnavailable wraps transport or backend failures of a store adapter.
	ErrUnavailable = errors.New("credential store unavailable")
	// ErrInvalidUpdate is returned for unknown fields or values of the wrong type.
	ErrInvalidUpdate = errors.New("invalid credential field update")
	// ErrDuplicateEmail is returned by adapters when creating a record whose email is taken.
	ErrDuplicateEmail = errors.New("credential email already registered")
)

// Record is the slice of a user entity owned by the auth core.
//
// Secrets, one-time codes and tokens are never stored in plaintext except the
// TOTP shared secrets, which must be recoverable to derive codes.
type Record struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	ClubID       string

	EmailVerified bool

	TOTPEnabled       bool
	TOTPSecret        string
	TOTPPendingSecret string
	TOTPLastStep      int64

	EmailOTPEnabled   bool
	EmailOTPHash      string
	EmailOTPExpiresAt time.Time

	RecoveryCodes []string

	EmailVerificationHash      string
	EmailVerificationExpiresAt time.Time
	PasswordResetHash          string
	PasswordResetExpiresAt     time.Time
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	if r.RecoveryCodes != nil {
		out.RecoveryCodes = append([]string(nil), r.RecoveryCodes...)
	}
	return out
}

// Field names a mutable column of a Record. The value doubles as the
// column/hash-field name used by the store adapters.
type Field string

const (
	FieldPasswordHash               Field = "password_hash"
	FieldEmailVerified              Field = "email_verified"
	FieldTOTPEnabled                Field = "totp_enabled"
	FieldTOTPSecret                 Field = "totp_secret"
	FieldTOTPPendingSecret          Field = "totp_pending_secret"
	FieldTOTPLastStep               Field = "totp_last_step"
	FieldEmailOTPEnabled            Field = "email_otp_enabled"
	FieldEmailOTPHash               Field = "email_otp_hash"
	FieldEmailOTPExpiresAt          Field = "email_otp_expires_at"
	FieldRecoveryCodes              Field = "recovery_codes"
	FieldEmailVerificationHash      Field = "email_verification_hash"
	FieldEmailVerificationExpiresAt Field = "email_verification_expires_at"
	FieldPasswordResetHash          Field = "password_reset_hash"
	FieldPasswordResetExpiresAt     Field = "password_reset_expires_at"
)

// Kind is the value type carried by a Field.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindBool
	KindInt
	KindTime
	KindSet
)

var fieldKinds = map[Field]Kind{
	FieldPasswordHash:               KindString,
	FieldEmailVerified:              KindBool,
	FieldTOTPEnabled:                KindBool,
	FieldTOTPSecret:                 KindString,
	FieldTOTPPendingSecret:          KindString,
	FieldTOTPLastStep:               KindInt,
	FieldEmailOTPEnabled:            KindBool,
	FieldEmailOTPHash:               KindString,
	FieldEmailOTPExpiresAt:          KindTime,
	FieldRecoveryCodes:              KindSet,
	FieldEmailVerificationHash:      KindString,
	FieldEmailVerificationExpiresAt: KindTime,
	FieldPasswordResetHash:          KindString,
	FieldPasswordResetExpiresAt:     KindTime,
}

// Kind reports the value type of f, or 0 for unknown fields.
func (f Field) Kind() Kind {
	return fieldKinds[f]
}

// RemoveMember, used as a Fields value on a set field, deletes a single member
// instead of replacing the whole set.
type RemoveMember struct {
	Member string
}

// Fields is a partial update. Values must match the field kind:
// string, bool, int64, time.Time, []string (whole set) or RemoveMember.
// A nil value resets the field to its zero value.
type Fields map[Field]any

// Validate checks every entry against the field kind table.
func (f Fields) Validate() error {
	if len(f) == 0 {
		return fmt.Errorf("%w: empty update", ErrInvalidUpdate)
	}
	for field, value := range f {
		kind := field.Kind()
		if kind == 0 {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidUpdate, field)
		}
		if value == nil {
			continue
		}
		ok := false
		switch value.(type) {
		case string:
			ok = kind == KindString
		case bool:
			ok = kind == KindBool
		case int64:
			ok = kind == KindInt
		case time.Time:
			ok = kind == KindTime
		case []string, RemoveMember:
			ok = kind == KindSet
		}
		if !ok {
			return fmt.Errorf("%w: %T not valid for %q", ErrInvalidUpdate, value, field)
		}
	}
	return nil
}

// Apply validates fields and writes them into r.
func (r *Record) Apply(fields Fields) error {
	if err := fields.Validate(); err != nil {
		return err
	}
	for field, value := range fields {
		r.set(field, value)
	}
	return nil
}

func (r *Record) set(field Field, value any) {
	switch field {
	case FieldPasswordHash:
		r.PasswordHash = asString(value)
	case FieldEmailVerified:
		r.EmailVerified = asBool(value)
	case FieldTOTPEnabled:
		r.TOTPEnabled = asBool(value)
	case FieldTOTPSecret:
		r.TOTPSecret = asString(value)
	case FieldTOTPPendingSecret:
		r.TOTPPendingSecret = asString(value)
	case FieldTOTPLastStep:
		r.TOTPLastStep, _ = value.(int64)
	case FieldEmailOTPEnabled:
		r.EmailOTPEnabled = asBool(value)
	case FieldEmailOTPHash:
		r.EmailOTPHash = asString(value)
	case FieldEmailOTPExpiresAt:
		r.EmailOTPExpiresAt = asTime(value)
	case FieldRecoveryCodes:
		switch v := value.(type) {
		case RemoveMember:
			r.RecoveryCodes = removeMember(r.RecoveryCodes, v.Member)
		case []string:
			r.RecoveryCodes = append([]string(nil), v...)
		default:
			r.RecoveryCodes = nil
		}
	case FieldEmailVerificationHash:
		r.EmailVerificationHash = asString(value)
	case FieldEmailVerificationExpiresAt:
		r.EmailVerificationExpiresAt = asTime(value)
	case FieldPasswordResetHash:
		r.PasswordResetHash = asString(value)
	case FieldPasswordResetExpiresAt:
		r.PasswordResetExpiresAt = asTime(value)
	}
}

// Value returns the current value of field in r, typed per Kind.
func (r Record) Value(field Field) (any, bool) {
	switch field {
	case FieldPasswordHash:
		return r.PasswordHash, true
	case FieldEmailVerified:
		return r.EmailVerified, true
	case FieldTOTPEnabled:
		return r.TOTPEnabled, true
	case FieldTOTPSecret:
		return r.TOTPSecret, true
	case FieldTOTPPendingSecret:
		return r.TOTPPendingSecret, true
	case FieldTOTPLastStep:
		return r.TOTPLastStep, true
	case FieldEmailOTPEnabled:
		return r.EmailOTPEnabled, true
	case FieldEmailOTPHash:
		return r.EmailOTPHash, true
	case FieldEmailOTPExpiresAt:
		return r.EmailOTPExpiresAt, true
	case FieldRecoveryCodes:
		return r.RecoveryCodes, true
	case FieldEmailVerificationHash:
		return r.EmailVerificationHash, true
	case FieldEmailVerificationExpiresAt:
		return r.EmailVerificationExpiresAt, true
	case FieldPasswordResetHash:
		return r.PasswordResetHash, true
	case FieldPasswordResetExpiresAt:
		return r.PasswordResetExpiresAt, true
	}
	return nil, false
}

// Op is a predicate operator.
type Op uint8

const (
	// OpEquals compares scalar fields for equality.
	OpEquals Op = iota + 1
	// OpContains holds when a set field contains the member.
	OpContains
	// OpLess holds when an int field is strictly less than the operand.
	OpLess
	// OpAfter holds when a time field is strictly after the operand.
	OpAfter
)

// Predicate is one clause of a Condition.
type Predicate struct {
	Field Field
	Op    Op
	Value any
}

// Condition is a conjunction of predicates evaluated against the stored
// record at the moment of the update. An empty Condition always holds.
type Condition []Predicate

func Equals(field Field, value any) Predicate {
	return Predicate{Field: field, Op: OpEquals, Value: value}
}

func Contains(field Field, member string) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: member}
}

func Less(field Field, value int64) Predicate {
	return Predicate{Field: field, Op: OpLess, Value: value}
}

func After(field Field, value time.Time) Predicate {
	return Predicate{Field: field, Op: OpAfter, Value: value}
}

// Validate reports operator/kind mismatches.
func (c Condition) Validate() error {
	for _, p := range c {
		kind := p.Field.Kind()
		if kind == 0 {
			return fmt.Errorf("%w: unknown condition field %q", ErrInvalidUpdate, p.Field)
		}
		ok := false
		switch p.Op {
		case OpEquals:
			switch p.Value.(type) {
			case string:
				ok = kind == KindString
			case bool:
				ok = kind == KindBool
			case int64:
				ok = kind == KindInt
			case time.Time:
				ok = kind == KindTime
			}
		case OpContains:
			_, isString := p.Value.(string)
			ok = isString && kind == KindSet
		case OpLess:
			_, isInt := p.Value.(int64)
			ok = isInt && kind == KindInt
		case OpAfter:
			_, isTime := p.Value.(time.Time)
			ok = isTime && kind == KindTime
		}
		if !ok {
			return fmt.Errorf("%w: bad predicate on %q", ErrInvalidUpdate, p.Field)
		}
	}
	return nil
}

// Match evaluates c against r.
func (c Condition) Match(r Record) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	for _, p := range c {
		current, _ := r.Value(p.Field)
		if !p.holds(current) {
			return false, nil
		}
	}
	return true, nil
}

func (p Predicate) holds(current any) bool {
	switch p.Op {
	case OpEquals:
		if t, ok := p.Value.(time.Time); ok {
			return asTime(current).Equal(t)
		}
		return current == p.Value
	case OpContains:
		member := p.Value.(string)
		for _, v := range asSet(current) {
			if v == member {
				return true
			}
		}
		return false
	case OpLess:
		n, _ := current.(int64)
		return n < p.Value.(int64)
	case OpAfter:
		t := asTime(current)
		return !t.IsZero() && t.After(p.Value.(time.Time))
	}
	return false
}

// Store is the persistence collaborator of the auth core.
//
// UpdateUserFieldsIf must evaluate cond and apply fields as a single atomic
// step; it reports false when the condition did not hold.
type Store interface {
	GetUserByID(ctx context.Context, id string) (Record, error)
	GetUserByEmail(ctx context.Context, email string) (Record, error)
	UpdateUserFields(ctx context.Context, id string, fields Fields) error
	UpdateUserFieldsIf(ctx context.Context, id string, fields Fields, cond Condition) (bool, error)
}

// NormalizeEmail is the canonical lookup form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func removeMember(set []string, member string) []string {
	out := make([]string, 0, len(set))
	removed := false
	for _, v := range set {
		if !removed && v == member {
			removed = true
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asSet(v any) []string {
	s, _ := v.([]string)
	return s
}
