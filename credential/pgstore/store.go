// Package pgstore persists credential records in PostgreSQL through pgx.
//
// Conditional updates compile to a single UPDATE whose WHERE clause carries
// the condition, so Postgres row locking provides the atomicity.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const table = "auth_users"

const selectColumns = `id, email, password_hash, role, club_id, email_verified,
	totp_enabled, totp_secret, totp_pending_secret, totp_last_step,
	email_otp_enabled, email_otp_hash, email_otp_expires_at, recovery_codes,
	email_verification_hash, email_verification_expires_at,
	password_reset_hash, password_reset_expires_at`

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig tunes the connection pool created by Connect.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store implements credential.Store on the auth_users table.
type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, rec credential.Record) (credential.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Email = credential.NormalizeEmail(rec.Email)
	codes := rec.RecoveryCodes
	if codes == nil {
		codes = []string{}
	}

	_, err := s.db.Exec(ctx, `INSERT INTO `+table+` (`+selectColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		rec.ID, rec.Email, rec.PasswordHash, rec.Role, rec.ClubID, rec.EmailVerified,
		rec.TOTPEnabled, rec.TOTPSecret, rec.TOTPPendingSecret, rec.TOTPLastStep,
		rec.EmailOTPEnabled, rec.EmailOTPHash, nullTime(rec.EmailOTPExpiresAt), codes,
		rec.EmailVerificationHash, nullTime(rec.EmailVerificationExpiresAt),
		rec.PasswordResetHash, nullTime(rec.PasswordResetExpiresAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return credential.Record{}, credential.ErrDuplicateEmail
		}
		return credential.Record{}, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return rec.Clone(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (credential.Record, error) {
	return s.getOne(ctx, `SELECT `+selectColumns+` FROM `+table+` WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (credential.Record, error) {
	return s.getOne(ctx, `SELECT `+selectColumns+` FROM `+table+` WHERE email = $1`, credential.NormalizeEmail(email))
}

func (s *Store) getOne(ctx context.Context, query string, arg string) (credential.Record, error) {
	var (
		rec                                      credential.Record
		otpExpires, verifyExpires, resetExpires *time.Time
	)
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&rec.ID, &rec.Email, &rec.PasswordHash, &rec.Role, &rec.ClubID, &rec.EmailVerified,
		&rec.TOTPEnabled, &rec.TOTPSecret, &rec.TOTPPendingSecret, &rec.TOTPLastStep,
		&rec.EmailOTPEnabled, &rec.EmailOTPHash, &otpExpires, &rec.RecoveryCodes,
		&rec.EmailVerificationHash, &verifyExpires,
		&rec.PasswordResetHash, &resetExpires,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return credential.Record{}, credential.ErrNotFound
		}
		return credential.Record{}, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	rec.EmailOTPExpiresAt = derefTime(otpExpires)
	rec.EmailVerificationExpiresAt = derefTime(verifyExpires)
	rec.PasswordResetExpiresAt = derefTime(resetExpires)
	if len(rec.RecoveryCodes) == 0 {
		rec.RecoveryCodes = nil
	}
	return rec, nil
}

func (s *Store) UpdateUserFields(ctx context.Context, id string, fields credential.Fields) error {
	_, err := s.UpdateUserFieldsIf(ctx, id, fields, nil)
	return err
}

func (s *Store) UpdateUserFieldsIf(ctx context.Context, id string, fields credential.Fields, cond credential.Condition) (bool, error) {
	query, args, err := buildUpdate(id, fields, cond)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	if !exists {
		return false, credential.ErrNotFound
	}
	return false, nil
}

// buildUpdate renders fields and cond into one UPDATE statement. Fields are
// emitted in name order so the SQL text is stable.
func buildUpdate(id string, fields credential.Fields, cond credential.Condition) (string, []any, error) {
	if err := fields.Validate(); err != nil {
		return "", nil, err
	}
	if err := cond.Validate(); err != nil {
		return "", nil, err
	}

	args := []any{id}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	for _, name := range names {
		field := credential.Field(name)
		value := fields[field]
		switch v := value.(type) {
		case nil:
			sets = append(sets, name+" = "+zeroLiteral(field.Kind()))
		case credential.RemoveMember:
			sets = append(sets, name+" = array_remove("+name+", "+next(v.Member)+")")
		case time.Time:
			sets = append(sets, name+" = "+next(nullTime(v)))
		default:
			sets = append(sets, name+" = "+next(v))
		}
	}
	sets = append(sets, "updated_at = NOW()")

	where := []string{"id = $1"}
	for _, p := range cond {
		col := string(p.Field)
		switch p.Op {
		case credential.OpEquals:
			where = append(where, col+" = "+next(p.Value))
		case credential.OpContains:
			where = append(where, next(p.Value)+" = ANY("+col+")")
		case credential.OpLess:
			where = append(where, col+" < "+next(p.Value))
		case credential.OpAfter:
			where = append(where, col+" > "+next(p.Value))
		}
	}

	query := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + strings.Join(where, " AND ")
	return query, args, nil
}

func zeroLiteral(kind credential.Kind) string {
	switch kind {
	case credential.KindBool:
		return "FALSE"
	case credential.KindInt:
		return "0"
	case credential.KindTime:
		return "NULL"
	case credential.KindSet:
		return "'{}'"
	default:
		return "''"
	}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
