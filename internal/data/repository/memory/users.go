package memory

import (
	"context"
	"fmt"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"

	"github.com/google/uuid"
)

type userRepo struct{ v *view }

func (r *userRepo) Create(ctx context.Context, user *entity.User) error {
	defer r.v.lock()()
	s := r.v.s

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("create user: %w", &repository.DuplicateError{Constraint: "users_pkey"})
	}
	for _, u := range s.users {
		switch {
		case u.Username == user.Username:
			return fmt.Errorf("create user: %w", &repository.DuplicateError{Constraint: repository.ConstraintUserUsername})
		case user.Phone != nil && strEq(u.Phone, *user.Phone):
			return fmt.Errorf("create user: %w", &repository.DuplicateError{Constraint: repository.ConstraintUserPhone})
		case user.TelegramChatID != nil && strEq(u.TelegramChatID, *user.TelegramChatID):
			return fmt.Errorf("create user: %w", &repository.DuplicateError{Constraint: repository.ConstraintUserTelegram})
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	defer r.v.lock()()
	if u, ok := r.v.s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *userRepo) FindByPhone(ctx context.Context, phone string) (*entity.User, error) {
	defer r.v.lock()()
	return r.find(func(u *entity.User) bool { return strEq(u.Phone, phone) }), nil
}

func (r *userRepo) FindByPhoneForUpdate(ctx context.Context, phone string) (*entity.User, error) {
	return r.FindByPhone(ctx, phone)
}

func (r *userRepo) FindByTelegramChatID(ctx context.Context, chatID string) (*entity.User, error) {
	defer r.v.lock()()
	return r.find(func(u *entity.User) bool { return strEq(u.TelegramChatID, chatID) }), nil
}

func (r *userRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	defer r.v.lock()()
	return r.find(func(u *entity.User) bool { return strEq(u.Phone, phone) }) != nil, nil
}

func (r *userRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	defer r.v.lock()()
	return r.find(func(u *entity.User) bool { return u.Username == username }) != nil, nil
}

func (r *userRepo) UpdateOTPState(ctx context.Context, id uuid.UUID, failedAttempts int, lockoutUntil *time.Time) error {
	defer r.v.lock()()
	u, ok := r.v.s.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id.String())
	}
	u.FailedOTPAttempts = failedAttempts
	u.LockoutUntil = lockoutUntil
	u.UpdatedAt = r.v.s.nowF()
	r.v.s.users[id] = u
	return nil
}

func (r *userRepo) find(match func(u *entity.User) bool) *entity.User {
	for _, u := range r.v.s.users {
		if match(&u) {
			return &u
		}
	}
	return nil
}
