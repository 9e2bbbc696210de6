package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/dto/request"
	"telegram-auth/internal/dto/response"
	"telegram-auth/internal/notifier"
	"telegram-auth/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MediumTelegram = "Telegram"
	MediumSMS      = "SMS (Fallback)"
)

const msgInvalidCredential = "Invalid OTP or phone number."

type OTPService interface {
	InitiateOTP(ctx context.Context, req *request.PhoneOTPInitiateRequest) (*response.OTPInitiateResponse, error)
	VerifyOTP(ctx context.Context, req *request.PhoneOTPVerifyRequest, meta request.SessionMeta) (*response.AuthResponse, error)
}

type otpService struct {
	repo     *repository.Repository
	sessions SessionService
	notifier notifier.Notifier
	fallback notifier.FallbackSender
	policy   Policy
	appName  string
	log      *zap.Logger
	now      func() time.Time
}

func NewOTPService(
	repo *repository.Repository,
	sessions SessionService,
	notify notifier.Notifier,
	fallback notifier.FallbackSender,
	policy Policy,
	appName string,
	log *zap.Logger,
	now func() time.Time,
) OTPService {
	if now == nil {
		now = time.Now
	}
	return &otpService{
		repo:     repo,
		sessions: sessions,
		notifier: notify,
		fallback: fallback,
		policy:   policy,
		appName:  appName,
		log:      log.With(zap.String("service", "otp")),
		now:      now,
	}
}

func (s *otpService) InitiateOTP(ctx context.Context, req *request.PhoneOTPInitiateRequest) (*response.OTPInitiateResponse, error) {
	phone := req.PhoneNumber
	log := s.log.With(zap.String("phone", utils.MaskPhone(phone)))

	var (
		user    *entity.User
		otp     *entity.OTP
		outcome error
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		user, err = tx.User.FindByPhoneForUpdate(ctx, phone)
		if err != nil {
			return err
		}
		if user == nil {
			outcome = newError(KindNotFound, "No account found with this phone number.")
			return nil
		}

		now := s.now()

		latest, err := tx.OTP.FindLatestByPhone(ctx, phone)
		if err != nil {
			return err
		}
		if latest != nil {
			if elapsed := now.Sub(latest.CreatedAt); elapsed < s.policy.OTPCooldown {
				e := &AuthError{Kind: KindRateLimited, RetryAfter: s.policy.OTPCooldown - elapsed}
				e.Message = fmt.Sprintf("Please wait %d seconds before requesting a new code.", e.RetryAfterSeconds())
				outcome = e
				return nil
			}
		}

		if user.IsLocked(now) {
			outcome = lockedError(user.LockoutUntil.Sub(now))
			return nil
		}

		// Not locked at this point, so earlier failures are forgiven.
		if user.FailedOTPAttempts > 0 {
			if err := tx.User.UpdateOTPState(ctx, user.ID, 0, nil); err != nil {
				return err
			}
		}

		code, err := utils.GenerateOTP(s.policy.OTPLength)
		if err != nil {
			return fmt.Errorf("generate OTP: %w", err)
		}

		if err := tx.OTP.InvalidateUnused(ctx, phone); err != nil {
			return err
		}

		userID := user.ID
		otp = &entity.OTP{
			BaseSimple: entity.BaseSimple{
				ID:        uuid.New(),
				CreatedAt: now,
			},
			UserID:      &userID,
			PhoneNumber: phone,
			Code:        code,
			ExpiresAt:   now.Add(s.policy.OTPExpiry),
		}
		return tx.OTP.Create(ctx, otp)
	})

	if err != nil {
		log.Error("Failed to issue OTP", zap.Error(err))
		return nil, internalError("failed to generate OTP", err)
	}
	if outcome != nil {
		log.Warn("OTP request rejected", zap.Error(outcome))
		return nil, outcome
	}

	medium := s.deliver(ctx, user, otp)
	log.Info("OTP issued", zap.String("medium", medium), zap.Time("expires_at", otp.ExpiresAt))

	return &response.OTPInitiateResponse{
		PhoneNumber: phone,
		Medium:      medium,
		ExpiresAt:   otp.ExpiresAt,
	}, nil
}

// deliver prefers the linked chat and falls back to SMS.
func (s *otpService) deliver(ctx context.Context, user *entity.User, otp *entity.OTP) string {
	if user.TelegramChatID != nil && *user.TelegramChatID != "" {
		msg := fmt.Sprintf("Your %s login code is: %s. It expires in %d minutes.",
			s.appName, otp.Code, int(s.policy.OTPExpiry.Minutes()))
		s.notifier.Deliver(ctx, *user.TelegramChatID, msg)
		return MediumTelegram
	}

	s.fallback.SendOTP(ctx, otp.PhoneNumber, otp.Code)
	return MediumSMS
}

func (s *otpService) VerifyOTP(ctx context.Context, req *request.PhoneOTPVerifyRequest, meta request.SessionMeta) (*response.AuthResponse, error) {
	phone := req.PhoneNumber
	log := s.log.With(zap.String("phone", utils.MaskPhone(phone)))

	var (
		result  *response.AuthResponse
		outcome error
	)
	// Failure branches return nil so the counter update commits.
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		user, err := tx.User.FindByPhoneForUpdate(ctx, phone)
		if err != nil {
			return err
		}
		if user == nil {
			outcome = newError(KindInvalid, msgInvalidCredential)
			return nil
		}

		now := s.now()
		if user.IsLocked(now) {
			outcome = lockedError(user.LockoutUntil.Sub(now))
			return nil
		}

		otp, err := tx.OTP.FindLatestUnused(ctx, phone, req.OTPCode)
		if err != nil {
			return err
		}

		if otp != nil && !otp.IsExpired(now) {
			if err := tx.OTP.MarkAsUsed(ctx, otp.ID); err != nil {
				return err
			}
			if err := tx.User.UpdateOTPState(ctx, user.ID, 0, nil); err != nil {
				return err
			}
			tokens, err := s.sessions.Mint(ctx, tx, user, meta)
			if err != nil {
				return err
			}
			result = &response.AuthResponse{
				User:   response.UserToResponse(user),
				Tokens: *tokens,
			}
			return nil
		}

		attempts := user.FailedOTPAttempts + 1
		if attempts >= s.policy.MaxOTPAttempts {
			until := now.Add(s.policy.LockoutDuration)
			if err := tx.User.UpdateOTPState(ctx, user.ID, 0, &until); err != nil {
				return err
			}
			// Same rounding as lockedError.
			e := &AuthError{Kind: KindLocked, RetryAfter: s.policy.LockoutDuration}
			e.Message = fmt.Sprintf("Maximum attempts reached. Account locked for %d minutes.", e.RetryAfterMinutes())
			outcome = e
			return nil
		}

		if err := tx.User.UpdateOTPState(ctx, user.ID, attempts, nil); err != nil {
			return err
		}
		remaining := s.policy.MaxOTPAttempts - attempts
		outcome = &AuthError{
			Kind:              KindInvalid,
			Message:           fmt.Sprintf("Invalid OTP. %d attempts remaining.", remaining),
			AttemptsRemaining: remaining,
		}
		return nil
	})

	if err != nil {
		log.Error("Failed to verify OTP", zap.Error(err))
		return nil, internalError("failed to verify OTP", err)
	}
	if outcome != nil {
		log.Warn("OTP verification failed", zap.Error(outcome))
		return nil, outcome
	}

	log.Info("OTP login successful", zap.String("user_id", result.User.ID))
	return result, nil
}

// lockedError reports the remaining lockout in whole minutes, rounded up: 30
// seconds left reads as 1 minute, never 0.
func lockedError(remaining time.Duration) *AuthError {
	e := &AuthError{Kind: KindLocked, RetryAfter: remaining}
	e.Message = fmt.Sprintf("Account locked. Try again in %d minutes.", e.RetryAfterMinutes())
	return e
}
