package entity

import "time"

type User struct {
	Base
	Username     string  `db:"username"`
	PasswordHash string  `db:"password"`
	FirstName    string  `db:"first_name"`
	LastName     string  `db:"last_name"`
	Phone        *string `db:"phone"`
	IsActive     bool    `db:"is_active"`

	TelegramChatID      *string `db:"telegram_chat_id"`
	TelegramUsername    *string `db:"telegram_username"`
	TelegramFirstName   *string `db:"telegram_first_name"`
	TelegramLastName    *string `db:"telegram_last_name"`
	TelegramProfileLink *string `db:"telegram_profile_link"`

	// OTP brute-force state. Only the OTP service reads or writes these.
	FailedOTPAttempts int        `db:"failed_otp_attempts"`
	LockoutUntil      *time.Time `db:"lockout_until"`
}

// IsLocked reports whether an OTP lockout is active at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockoutUntil != nil && u.LockoutUntil.After(now)
}

// TelegramDisplayName prefers "first last" and falls back to the username.
func (u *User) TelegramDisplayName() string {
	if u.TelegramFirstName != nil && *u.TelegramFirstName != "" &&
		u.TelegramLastName != nil && *u.TelegramLastName != "" {
		return *u.TelegramFirstName + " " + *u.TelegramLastName
	}
	if u.TelegramUsername != nil {
		return *u.TelegramUsername
	}
	return ""
}
