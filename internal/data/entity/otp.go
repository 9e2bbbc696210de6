package entity

import (
	"time"

	"github.com/google/uuid"
)

type OTP struct {
	BaseSimple
	UserID      *uuid.UUID `db:"user_id"`
	PhoneNumber string     `db:"phone_number"`
	Code        string     `db:"code"`
	ExpiresAt   time.Time  `db:"expires_at"`
	IsUsed      bool       `db:"is_used"`
}

func (o *OTP) IsExpired(now time.Time) bool {
	return o.ExpiresAt.Before(now)
}
