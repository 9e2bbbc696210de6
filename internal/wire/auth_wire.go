package wire

import (
	"telegram-auth/internal/adaptor"
	"telegram-auth/internal/usecase"
	"telegram-auth/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAuth(
	r chi.Router,
	handler *adaptor.Handler,
	service *usecase.Service,
	log *zap.Logger,
) {
	r.Route("/api/auth", func(r chi.Router) {
		// ==================== TELEGRAM ====================
		r.Post("/initiate", handler.Telegram.Initiate)
		r.Post("/webhook", handler.Telegram.Webhook)
		r.Get("/check", handler.Telegram.Status)
		r.Post("/final", handler.Telegram.Finalize)

		// ==================== PHONE OTP ====================
		r.Post("/phone/initiate", handler.Phone.Initiate)
		r.Post("/phone/verify", handler.Phone.Verify)

		// ==================== PROTECTED ====================
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthSession(service.Session, log))
			r.Get("/profile", handler.Account.Profile)
			r.Post("/logout", handler.Account.Logout)
		})
	})
}
