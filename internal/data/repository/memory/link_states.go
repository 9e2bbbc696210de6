package memory

import (
	"context"
	"fmt"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"

	"github.com/google/uuid"
)

type linkStateRepo struct{ v *view }

func (r *linkStateRepo) Create(ctx context.Context, state *entity.LinkState) error {
	defer r.v.lock()()
	s := r.v.s

	if _, ok := s.states[state.Code]; ok {
		return fmt.Errorf("create link state: %w", &repository.DuplicateError{Constraint: "telegram_link_states_pkey"})
	}
	if err := r.checkChatUnique(state); err != nil {
		return fmt.Errorf("create link state: %w", err)
	}
	s.states[state.Code] = *state
	return nil
}

func (r *linkStateRepo) checkChatUnique(state *entity.LinkState) error {
	if state.TelegramChatID == nil {
		return nil
	}
	for code, other := range r.v.s.states {
		if code != state.Code && strEq(other.TelegramChatID, *state.TelegramChatID) {
			return &repository.DuplicateError{Constraint: repository.ConstraintStateTelegram}
		}
	}
	return nil
}

func (r *linkStateRepo) FindByCode(ctx context.Context, code uuid.UUID) (*entity.LinkState, error) {
	defer r.v.lock()()
	if st, ok := r.v.s.states[code]; ok {
		return &st, nil
	}
	return nil, nil
}

func (r *linkStateRepo) FindByCodeForUpdate(ctx context.Context, code uuid.UUID) (*entity.LinkState, error) {
	return r.FindByCode(ctx, code)
}

func (r *linkStateRepo) Update(ctx context.Context, state *entity.LinkState) error {
	defer r.v.lock()()
	current, ok := r.v.s.states[state.Code]
	if !ok {
		return fmt.Errorf("link state %s not found", state.Code.String())
	}
	if err := r.checkChatUnique(state); err != nil {
		return fmt.Errorf("update link state %s: %w", state.Code.String(), err)
	}
	current.TelegramChatID = state.TelegramChatID
	current.TelegramUsername = state.TelegramUsername
	current.TelegramFirstName = state.TelegramFirstName
	current.TelegramLastName = state.TelegramLastName
	current.Verified = state.Verified
	r.v.s.states[state.Code] = current
	return nil
}

func (r *linkStateRepo) Delete(ctx context.Context, code uuid.UUID) error {
	defer r.v.lock()()
	delete(r.v.s.states, code)
	return nil
}

func (r *linkStateRepo) DeleteByChatID(ctx context.Context, chatID string, keep uuid.UUID) (int64, error) {
	defer r.v.lock()()
	var n int64
	for code, st := range r.v.s.states {
		if code != keep && strEq(st.TelegramChatID, chatID) {
			delete(r.v.s.states, code)
			n++
		}
	}
	return n, nil
}
