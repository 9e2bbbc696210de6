// Package memory provides an in-process implementation of every repository,
// with the same unique constraints as the Postgres schema. Transactions are
// serialized and rolled back on error, so it can stand in for the database in
// tests and local runs (STORE_DRIVER=memory).
package memory

import (
	"context"
	"sync"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]entity.User
	states   map[uuid.UUID]entity.LinkState
	otps     []entity.OTP
	sessions map[uuid.UUID]entity.Session
	nowF     func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]entity.User),
		states:   make(map[uuid.UUID]entity.LinkState),
		sessions: make(map[uuid.UUID]entity.Session),
		nowF:     time.Now,
	}
}

// Repository returns a repository set whose standalone calls each run as
// their own transaction.
func (s *Store) Repository() *repository.Repository {
	outer := &view{s: s}
	inner := &view{s: s, inTx: true}
	innerRepo := repository.Assemble(
		&userRepo{inner}, &sessionRepo{inner}, &otpRepo{inner}, &linkStateRepo{inner}, nil,
	)
	return repository.Assemble(
		&userRepo{outer}, &sessionRepo{outer}, &otpRepo{outer}, &linkStateRepo{outer},
		func(ctx context.Context, fn func(repo *repository.Repository) error) error {
			return s.transaction(fn, innerRepo)
		},
	)
}

type snapshot struct {
	users    map[uuid.UUID]entity.User
	states   map[uuid.UUID]entity.LinkState
	otps     []entity.OTP
	sessions map[uuid.UUID]entity.Session
}

func (s *Store) transaction(fn func(repo *repository.Repository) error, repo *repository.Repository) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(repo)
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		users:    make(map[uuid.UUID]entity.User, len(s.users)),
		states:   make(map[uuid.UUID]entity.LinkState, len(s.states)),
		otps:     append([]entity.OTP(nil), s.otps...),
		sessions: make(map[uuid.UUID]entity.Session, len(s.sessions)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.states {
		snap.states[k] = v
	}
	for k, v := range s.sessions {
		snap.sessions[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.states = snap.states
	s.otps = snap.otps
	s.sessions = snap.sessions
}

// view locks the store for a single call unless it already runs inside a transaction.
type view struct {
	s    *Store
	inTx bool
}

func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func strEq(a *string, b string) bool {
	return a != nil && *a == b
}
