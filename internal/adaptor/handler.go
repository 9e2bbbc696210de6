package adaptor

import (
	"telegram-auth/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Telegram *TelegramHandler
	Phone    *PhoneHandler
	Account  *AccountHandler
}

func NewHandler(service *usecase.Service, webhookSecret string, log *zap.Logger) *Handler {
	return &Handler{
		Telegram: NewTelegramHandler(service.Telegram, webhookSecret, log),
		Phone:    NewPhoneHandler(service.OTP, log),
		Account:  NewAccountHandler(service.Telegram, service.Session, log),
	}
}
