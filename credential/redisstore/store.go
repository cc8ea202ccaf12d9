// Package redisstore persists credential records in Redis.
//
// Each record is one versioned binary value under <prefix>:u:<id>; an index
// key <prefix>:e:<email> maps normalized emails to ids. Conditional updates
// run as WATCH/MULTI optimistic transactions.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/credential"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxRetries = 8

// Store implements credential.Store on Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "acr"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) userKey(id string) string {
	return s.prefix + ":u:" + id
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":e:" + credential.NormalizeEmail(email)
}

// Create stores a new record and claims its email index entry.
func (s *Store) Create(ctx context.Context, rec credential.Record) (credential.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	encoded, err := encodeRecord(rec)
	if err != nil {
		return credential.Record{}, err
	}

	if rec.Email != "" {
		claimed, err := s.redis.SetNX(ctx, s.emailKey(rec.Email), rec.ID, 0).Result()
		if err != nil {
			return credential.Record{}, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
		}
		if !claimed {
			return credential.Record{}, credential.ErrDuplicateEmail
		}
	}

	if err := s.redis.Set(ctx, s.userKey(rec.ID), encoded, 0).Err(); err != nil {
		if rec.Email != "" {
			_ = s.redis.Del(ctx, s.emailKey(rec.Email)).Err()
		}
		return credential.Record{}, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return rec.Clone(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (credential.Record, error) {
	data, err := s.redis.Get(ctx, s.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return credential.Record{}, credential.ErrNotFound
		}
		return credential.Record{}, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return decodeRecord(data)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (credential.Record, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return credential.Record{}, credential.ErrNotFound
		}
		return credential.Record{}, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) UpdateUserFields(ctx context.Context, id string, fields credential.Fields) error {
	_, err := s.UpdateUserFieldsIf(ctx, id, fields, nil)
	return err
}

// UpdateUserFieldsIf re-reads the record under WATCH, evaluates cond and
// writes the updated record in MULTI. A concurrent writer aborts the
// transaction and the loop retries against the fresh value.
func (s *Store) UpdateUserFieldsIf(ctx context.Context, id string, fields credential.Fields, cond credential.Condition) (bool, error) {
	if err := fields.Validate(); err != nil {
		return false, err
	}
	if err := cond.Validate(); err != nil {
		return false, err
	}
	key := s.userKey(id)

	for i := 0; i < maxRetries; i++ {
		var applied bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			rec, err := decodeRecord(data)
			if err != nil {
				return err
			}
			matched, err := cond.Match(rec)
			if err != nil || !matched {
				return err
			}
			if err := rec.Apply(fields); err != nil {
				return err
			}
			updated, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			if err == nil {
				applied = true
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return false, credential.ErrNotFound
			case errors.Is(err, credential.ErrInvalidUpdate), errors.Is(err, errRecordCorrupt):
				return false, err
			}
			return false, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
		}
		return applied, nil
	}

	return false, fmt.Errorf("%w: write contention on %s", credential.ErrUnavailable, key)
}
