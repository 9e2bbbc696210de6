package repository

import (
	"context"
	"errors"
	"fmt"

	"telegram-auth/internal/data/entity"
	"telegram-auth/pkg/database"
	"telegram-auth/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type OTPRepository interface {
	Create(ctx context.Context, otp *entity.OTP) error
	// FindLatestByPhone returns the most recently issued OTP regardless of status.
	FindLatestByPhone(ctx context.Context, phone string) (*entity.OTP, error)
	// FindLatestUnused returns the newest unused OTP matching phone and code,
	// locked for update. Expiry is left to the caller.
	FindLatestUnused(ctx context.Context, phone, code string) (*entity.OTP, error)
	InvalidateUnused(ctx context.Context, phone string) error
	MarkAsUsed(ctx context.Context, otpID uuid.UUID) error
}

type otpRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewOTPRepository(db database.Querier, log *zap.Logger) OTPRepository {
	return &otpRepository{
		db:  db,
		log: log.With(zap.String("repository", "otp")),
	}
}

const otpColumns = `id, user_id, phone_number, code, expires_at, is_used, created_at`

func (r *otpRepository) Create(ctx context.Context, otp *entity.OTP) error {
	query := `
		INSERT INTO otps (` + otpColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		otp.ID,
		otp.UserID,
		otp.PhoneNumber,
		otp.Code,
		otp.ExpiresAt,
		otp.IsUsed,
		otp.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create OTP",
			zap.Error(err),
			zap.String("phone", utils.MaskPhone(otp.PhoneNumber)),
		)
		return fmt.Errorf("create OTP: %w", mapWriteError(err))
	}

	return nil
}

func (r *otpRepository) FindLatestByPhone(ctx context.Context, phone string) (*entity.OTP, error) {
	query := `
		SELECT ` + otpColumns + `
		FROM otps
		WHERE phone_number = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	otp, err := scanOTP(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		r.log.Error("Failed to find latest OTP",
			zap.Error(err),
			zap.String("phone", utils.MaskPhone(phone)),
		)
		return nil, fmt.Errorf("find latest OTP: %w", err)
	}

	return otp, nil
}

func (r *otpRepository) FindLatestUnused(ctx context.Context, phone, code string) (*entity.OTP, error) {
	query := `
		SELECT ` + otpColumns + `
		FROM otps
		WHERE phone_number = $1
		  AND code = $2
		  AND is_used = false
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`

	otp, err := scanOTP(r.db.QueryRow(ctx, query, phone, code))
	if err != nil {
		r.log.Error("Failed to find unused OTP",
			zap.Error(err),
			zap.String("phone", utils.MaskPhone(phone)),
		)
		return nil, fmt.Errorf("find unused OTP: %w", err)
	}

	return otp, nil
}

func (r *otpRepository) InvalidateUnused(ctx context.Context, phone string) error {
	query := `
		UPDATE otps
		SET is_used = true
		WHERE phone_number = $1 AND is_used = false
	`

	if _, err := r.db.Exec(ctx, query, phone); err != nil {
		r.log.Error("Failed to invalidate OTPs",
			zap.Error(err),
			zap.String("phone", utils.MaskPhone(phone)),
		)
		return fmt.Errorf("invalidate OTPs: %w", err)
	}

	return nil
}

func (r *otpRepository) MarkAsUsed(ctx context.Context, otpID uuid.UUID) error {
	query := `
		UPDATE otps
		SET is_used = true
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, otpID)
	if err != nil {
		r.log.Error("Failed to mark OTP as used",
			zap.Error(err),
			zap.String("otp_id", otpID.String()),
		)
		return fmt.Errorf("mark OTP %s as used: %w", otpID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("OTP %s not found", otpID.String())
	}

	return nil
}

func scanOTP(row pgx.Row) (*entity.OTP, error) {
	var otp entity.OTP
	err := row.Scan(
		&otp.ID,
		&otp.UserID,
		&otp.PhoneNumber,
		&otp.Code,
		&otp.ExpiresAt,
		&otp.IsUsed,
		&otp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &otp, nil
}
