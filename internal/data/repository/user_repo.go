package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/pkg/database"
	"telegram-auth/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByPhone(ctx context.Context, phone string) (*entity.User, error)
	// FindByPhoneForUpdate also locks the row until the transaction ends.
	FindByPhoneForUpdate(ctx context.Context, phone string) (*entity.User, error)
	FindByTelegramChatID(ctx context.Context, chatID string) (*entity.User, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdateOTPState(ctx context.Context, id uuid.UUID, failedAttempts int, lockoutUntil *time.Time) error
}

type userRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewUserRepository(db database.Querier, log *zap.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log.With(zap.String("repository", "user")),
	}
}

const userColumns = `id, username, password, first_name, last_name, phone, is_active,
		       telegram_chat_id, telegram_username, telegram_first_name, telegram_last_name,
		       telegram_profile_link, failed_otp_attempts, lockout_until, created_at, updated_at`

// Create inserts a new user record into the database
func (ur *userRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, username, password, first_name, last_name, phone, is_active,
		                   telegram_chat_id, telegram_username, telegram_first_name, telegram_last_name,
		                   telegram_profile_link, failed_otp_attempts, lockout_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := ur.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.IsActive,
		user.TelegramChatID,
		user.TelegramUsername,
		user.TelegramFirstName,
		user.TelegramLastName,
		user.TelegramProfileLink,
		user.FailedOTPAttempts,
		user.LockoutUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		ur.log.Error("Failed to create user",
			zap.Error(err),
			zap.String("username", user.Username),
		)
		return fmt.Errorf("create user %s: %w", user.Username, mapWriteError(err))
	}

	return nil
}

func (ur *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := ur.scanOne(ur.db.QueryRow(ctx, query, id))
	if err != nil {
		ur.log.Error("Failed to find user by ID",
			zap.Error(err),
			zap.String("user_id", id.String()),
		)
		return nil, fmt.Errorf("find user by ID %s: %w", id.String(), err)
	}

	return user, nil
}

func (ur *userRepository) FindByPhone(ctx context.Context, phone string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`

	user, err := ur.scanOne(ur.db.QueryRow(ctx, query, phone))
	if err != nil {
		ur.log.Error("Failed to find user by phone",
			zap.Error(err),
			zap.String("phone", utils.MaskPhone(phone)),
		)
		return nil, fmt.Errorf("find user by phone: %w", err)
	}

	return user, nil
}

func (ur *userRepository) FindByPhoneForUpdate(ctx context.Context, phone string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1 FOR UPDATE`

	user, err := ur.scanOne(ur.db.QueryRow(ctx, query, phone))
	if err != nil {
		ur.log.Error("Failed to lock user by phone",
			zap.Error(err),
			zap.String("phone", utils.MaskPhone(phone)),
		)
		return nil, fmt.Errorf("lock user by phone: %w", err)
	}

	return user, nil
}

func (ur *userRepository) FindByTelegramChatID(ctx context.Context, chatID string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_chat_id = $1`

	user, err := ur.scanOne(ur.db.QueryRow(ctx, query, chatID))
	if err != nil {
		ur.log.Error("Failed to find user by telegram chat ID",
			zap.Error(err),
			zap.String("chat_id", chatID),
		)
		return nil, fmt.Errorf("find user by chat ID %s: %w", chatID, err)
	}

	return user, nil
}

func (ur *userRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := ur.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1)`, phone).Scan(&exists)
	if err != nil {
		ur.log.Error("Failed to check phone", zap.Error(err), zap.String("phone", utils.MaskPhone(phone)))
		return false, fmt.Errorf("check phone: %w", err)
	}
	return exists, nil
}

func (ur *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := ur.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		ur.log.Error("Failed to check username", zap.Error(err), zap.String("username", username))
		return false, fmt.Errorf("check username %s: %w", username, err)
	}
	return exists, nil
}

func (ur *userRepository) UpdateOTPState(ctx context.Context, id uuid.UUID, failedAttempts int, lockoutUntil *time.Time) error {
	query := `
		UPDATE users
		SET failed_otp_attempts = $2, lockout_until = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := ur.db.Exec(ctx, query, id, failedAttempts, lockoutUntil)
	if err != nil {
		ur.log.Error("Failed to update OTP state",
			zap.Error(err),
			zap.String("user_id", id.String()),
		)
		return fmt.Errorf("update OTP state for user %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id.String())
	}

	return nil
}

// scanOne returns nil, nil when the row does not exist.
func (ur *userRepository) scanOne(row pgx.Row) (*entity.User, error) {
	var user entity.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.IsActive,
		&user.TelegramChatID,
		&user.TelegramUsername,
		&user.TelegramFirstName,
		&user.TelegramLastName,
		&user.TelegramProfileLink,
		&user.FailedOTPAttempts,
		&user.LockoutUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
