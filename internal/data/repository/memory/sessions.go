package memory

import (
	"context"
	"fmt"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"

	"github.com/google/uuid"
)

type sessionRepo struct{ v *view }

func (r *sessionRepo) Create(ctx context.Context, session *entity.Session) error {
	defer r.v.lock()()
	s := r.v.s
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("failed to create session: %w", &repository.DuplicateError{Constraint: "sessions_pkey"})
	}
	for _, other := range s.sessions {
		if other.Token == session.Token {
			return fmt.Errorf("failed to create session: %w", &repository.DuplicateError{Constraint: repository.ConstraintSessionToken})
		}
	}
	s.sessions[session.ID] = *session
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	defer r.v.lock()()
	if sess, ok := r.v.s.sessions[id]; ok {
		return &sess, nil
	}
	return nil, nil
}

func (r *sessionRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	defer r.v.lock()()
	sess, ok := r.v.s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return fmt.Errorf("session not found or already revoked")
	}
	now := r.v.s.nowF()
	sess.RevokedAt = &now
	r.v.s.sessions[id] = sess
	return nil
}
