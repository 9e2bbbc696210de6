package adaptor

import (
	"net/http"

	"telegram-auth/internal/usecase"
	"telegram-auth/pkg/utils"

	"go.uber.org/zap"
)

// AccountHandler serves routes behind the session middleware.
type AccountHandler struct {
	telegram usecase.TelegramService
	sessions usecase.SessionService
	log      *zap.Logger
}

func NewAccountHandler(telegram usecase.TelegramService, sessions usecase.SessionService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		telegram: telegram,
		sessions: sessions,
		log:      log,
	}
}

// Profile handles GET /api/auth/profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	// Set by the auth middleware
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	profile, err := h.telegram.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.log, err, "get profile")
		return
	}

	utils.ResponseSuccess(w, "Authenticated", profile)
}

// Logout handles POST /api/auth/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := utils.GetSessionIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	if err := h.sessions.Logout(r.Context(), sessionID); err != nil {
		handleServiceError(w, h.log, err, "logout")
		return
	}

	utils.ResponseSuccess(w, "Logout successful", nil)
}
