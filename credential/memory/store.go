// Package memory is an in-process credential.Store for tests, examples and
// single-node tools.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/authcore/credential"
	"github.com/google/uuid"
)

// Store keeps records in maps guarded by one mutex, which makes every
// conditional update trivially atomic.
type Store struct {
	mu      sync.Mutex
	byID    map[string]credential.Record
	byEmail map[string]string
}

func New() *Store {
	return &Store{
		byID:    make(map[string]credential.Record),
		byEmail: make(map[string]string),
	}
}

// Create inserts rec, assigning a uuid when rec.ID is empty.
func (s *Store) Create(_ context.Context, rec credential.Record) (credential.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	email := credential.NormalizeEmail(rec.Email)
	if email != "" {
		if owner, ok := s.byEmail[email]; ok && owner != rec.ID {
			return credential.Record{}, credential.ErrDuplicateEmail
		}
		s.byEmail[email] = rec.ID
	}
	rec = rec.Clone()
	s.byID[rec.ID] = rec
	return rec.Clone(), nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (credential.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return credential.Record{}, credential.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (credential.Record, error) {
	s.mu.Lock()
	id, ok := s.byEmail[credential.NormalizeEmail(email)]
	s.mu.Unlock()
	if !ok {
		return credential.Record{}, credential.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) UpdateUserFields(ctx context.Context, id string, fields credential.Fields) error {
	_, err := s.UpdateUserFieldsIf(ctx, id, fields, nil)
	return err
}

func (s *Store) UpdateUserFieldsIf(_ context.Context, id string, fields credential.Fields, cond credential.Condition) (bool, error) {
	if err := fields.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return false, credential.ErrNotFound
	}
	matched, err := cond.Match(rec)
	if err != nil || !matched {
		return false, err
	}
	rec = rec.Clone()
	if err := rec.Apply(fields); err != nil {
		return false, err
	}
	s.byID[id] = rec
	return true, nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
