package entity

import (
	"time"

	"github.com/google/uuid"
)

type FlowKind string

const (
	FlowRegistration FlowKind = "REG"
	// FlowLogin is reserved. Every handshake starts as a registration and
	// the status poll decides whether it turns into a login.
	FlowLogin FlowKind = "LOG"
)

// LinkState tracks one in-flight Telegram binding handshake.
type LinkState struct {
	Code              uuid.UUID `db:"code"`
	TelegramChatID    *string   `db:"telegram_chat_id"`
	FlowKind          FlowKind  `db:"flow_kind"`
	TelegramUsername  *string   `db:"telegram_username"`
	TelegramFirstName *string   `db:"telegram_first_name"`
	TelegramLastName  *string   `db:"telegram_last_name"`
	Verified          bool      `db:"is_verified"`
	CreatedAt         time.Time `db:"created_at"`
}

// IsExpired reports whether now is past createdAt + window.
func (s *LinkState) IsExpired(now time.Time, window time.Duration) bool {
	return now.After(s.CreatedAt.Add(window))
}

// BoundElsewhere reports whether the state is bound to a chat other than chatID.
func (s *LinkState) BoundElsewhere(chatID string) bool {
	return s.TelegramChatID != nil && *s.TelegramChatID != "" && *s.TelegramChatID != chatID
}
