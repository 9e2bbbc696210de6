package usecase

import (
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/notifier"
	"telegram-auth/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Telegram TelegramService
	OTP      OTPService
	Session  SessionService
}

func NewService(
	repo *repository.Repository,
	config *utils.Config,
	notify notifier.Notifier,
	fallback notifier.FallbackSender,
	log *zap.Logger,
) *Service {
	policy := NewPolicy(config.Auth)
	sessions := NewSessionService(repo, utils.NewTokenIssuer(config.JWT), log, nil)

	return &Service{
		Telegram: NewTelegramService(repo, sessions, notify, policy, config.Telegram.BotUsername, log, nil),
		OTP:      NewOTPService(repo, sessions, notify, fallback, policy, config.App.Name, log, nil),
		Session:  sessions,
	}
}
