package repository

import (
	"context"
	"errors"
	"fmt"

	"telegram-auth/internal/data/entity"
	"telegram-auth/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type LinkStateRepository interface {
	Create(ctx context.Context, state *entity.LinkState) error
	FindByCode(ctx context.Context, code uuid.UUID) (*entity.LinkState, error)
	// FindByCodeForUpdate locks the row so concurrent handlers for the same
	// code are serialized until the transaction ends.
	FindByCodeForUpdate(ctx context.Context, code uuid.UUID) (*entity.LinkState, error)
	// Update persists the binding fields (chat id, chat profile, verified).
	Update(ctx context.Context, state *entity.LinkState) error
	Delete(ctx context.Context, code uuid.UUID) error
	// DeleteByChatID removes every state bound to chatID except keep.
	DeleteByChatID(ctx context.Context, chatID string, keep uuid.UUID) (int64, error)
}

type linkStateRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewLinkStateRepository(db database.Querier, log *zap.Logger) LinkStateRepository {
	return &linkStateRepository{
		db:  db,
		log: log.With(zap.String("repository", "link_state")),
	}
}

const linkStateColumns = `code, telegram_chat_id, flow_kind, telegram_username, telegram_first_name,
		       telegram_last_name, is_verified, created_at`

func (r *linkStateRepository) Create(ctx context.Context, state *entity.LinkState) error {
	query := `
		INSERT INTO telegram_link_states (code, telegram_chat_id, flow_kind, telegram_username,
		                                  telegram_first_name, telegram_last_name, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		state.Code,
		state.TelegramChatID,
		state.FlowKind,
		state.TelegramUsername,
		state.TelegramFirstName,
		state.TelegramLastName,
		state.Verified,
		state.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create link state", zap.Error(err))
		return fmt.Errorf("create link state: %w", mapWriteError(err))
	}

	return nil
}

func (r *linkStateRepository) FindByCode(ctx context.Context, code uuid.UUID) (*entity.LinkState, error) {
	query := `SELECT ` + linkStateColumns + ` FROM telegram_link_states WHERE code = $1`
	return r.findOne(ctx, query, code)
}

func (r *linkStateRepository) FindByCodeForUpdate(ctx context.Context, code uuid.UUID) (*entity.LinkState, error) {
	query := `SELECT ` + linkStateColumns + ` FROM telegram_link_states WHERE code = $1 FOR UPDATE`
	return r.findOne(ctx, query, code)
}

func (r *linkStateRepository) findOne(ctx context.Context, query string, code uuid.UUID) (*entity.LinkState, error) {
	var state entity.LinkState
	err := r.db.QueryRow(ctx, query, code).Scan(
		&state.Code,
		&state.TelegramChatID,
		&state.FlowKind,
		&state.TelegramUsername,
		&state.TelegramFirstName,
		&state.TelegramLastName,
		&state.Verified,
		&state.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find link state",
			zap.Error(err),
			zap.String("code", code.String()),
		)
		return nil, fmt.Errorf("find link state %s: %w", code.String(), err)
	}

	return &state, nil
}

func (r *linkStateRepository) Update(ctx context.Context, state *entity.LinkState) error {
	query := `
		UPDATE telegram_link_states
		SET telegram_chat_id = $2, telegram_username = $3, telegram_first_name = $4,
		    telegram_last_name = $5, is_verified = $6
		WHERE code = $1
	`

	result, err := r.db.Exec(ctx, query,
		state.Code,
		state.TelegramChatID,
		state.TelegramUsername,
		state.TelegramFirstName,
		state.TelegramLastName,
		state.Verified,
	)
	if err != nil {
		r.log.Warn("Failed to update link state",
			zap.Error(err),
			zap.String("code", state.Code.String()),
		)
		return fmt.Errorf("update link state %s: %w", state.Code.String(), mapWriteError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("link state %s not found", state.Code.String())
	}

	return nil
}

func (r *linkStateRepository) Delete(ctx context.Context, code uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM telegram_link_states WHERE code = $1`, code); err != nil {
		r.log.Error("Failed to delete link state",
			zap.Error(err),
			zap.String("code", code.String()),
		)
		return fmt.Errorf("delete link state %s: %w", code.String(), err)
	}
	return nil
}

func (r *linkStateRepository) DeleteByChatID(ctx context.Context, chatID string, keep uuid.UUID) (int64, error) {
	query := `DELETE FROM telegram_link_states WHERE telegram_chat_id = $1 AND code <> $2`

	result, err := r.db.Exec(ctx, query, chatID, keep)
	if err != nil {
		r.log.Error("Failed to delete link states by chat ID",
			zap.Error(err),
			zap.String("chat_id", chatID),
		)
		return 0, fmt.Errorf("delete link states for chat %s: %w", chatID, err)
	}

	return result.RowsAffected(), nil
}
