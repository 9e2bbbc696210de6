package response

import (
	"time"

	"telegram-auth/internal/data/entity"
)

const (
	StatusInvalidCode = "invalid_code"
	StatusExpired     = "expired"
	StatusPending     = "pending"
	StatusVerified    = "verified"
	StatusSuccess     = "success"
)

type InitiateResponse struct {
	Code      string    `json:"one_time_code"`
	DeepLink  string    `json:"deep_link,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SessionID    string    `json:"session_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type StatusResponse struct {
	Status     string         `json:"status"`
	Message    string         `json:"message"`
	Registered *bool          `json:"registered,omitempty"`
	Tokens     *TokenResponse `json:"tokens,omitempty"`
}

type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

type OTPInitiateResponse struct {
	PhoneNumber string    `json:"phone_number"`
	Medium      string    `json:"medium"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UserResponse struct {
	ID                  string    `json:"user_id"`
	Username            string    `json:"username"`
	FirstName           string    `json:"first_name,omitempty"`
	LastName            string    `json:"last_name,omitempty"`
	PhoneNumber         *string   `json:"phone_number,omitempty"`
	TelegramUsername    string    `json:"telegram_username,omitempty"`
	TelegramProfileLink *string   `json:"telegram_profile_link,omitempty"`
	TelegramLinked      bool      `json:"telegram_linked"`
	CreatedAt           time.Time `json:"created_at"`
}

// Helper converters
func UserToResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:                  user.ID.String(),
		Username:            user.Username,
		FirstName:           user.FirstName,
		LastName:            user.LastName,
		PhoneNumber:         user.Phone,
		TelegramUsername:    user.TelegramDisplayName(),
		TelegramProfileLink: user.TelegramProfileLink,
		TelegramLinked:      user.TelegramChatID != nil && *user.TelegramChatID != "",
		CreatedAt:           user.CreatedAt,
	}
}

func SessionToTokens(session *entity.Session, access, refresh string) TokenResponse {
	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    session.ID.String(),
		ExpiresAt:    session.ExpiresAt,
	}
}
