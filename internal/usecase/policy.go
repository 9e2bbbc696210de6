package usecase

import (
	"time"

	"telegram-auth/pkg/utils"
)

// Policy holds the verification windows and OTP brute-force limits shared by
// the Telegram and OTP services.
type Policy struct {
	CodeExpiry      time.Duration
	OTPExpiry       time.Duration
	OTPCooldown     time.Duration
	MaxOTPAttempts  int
	LockoutDuration time.Duration
	OTPLength       int
}

func DefaultPolicy() Policy {
	return Policy{
		CodeExpiry:      2 * time.Minute,
		OTPExpiry:       5 * time.Minute,
		OTPCooldown:     60 * time.Second,
		MaxOTPAttempts:  5,
		LockoutDuration: 10 * time.Minute,
		OTPLength:       6,
	}
}

// NewPolicy converts config values; non-positive values keep the default.
func NewPolicy(cfg utils.AuthConfig) Policy {
	p := DefaultPolicy()
	if cfg.CodeExpiryMinutes > 0 {
		p.CodeExpiry = time.Duration(cfg.CodeExpiryMinutes) * time.Minute
	}
	if cfg.OTPExpiryMinutes > 0 {
		p.OTPExpiry = time.Duration(cfg.OTPExpiryMinutes) * time.Minute
	}
	if cfg.OTPCooldownSeconds > 0 {
		p.OTPCooldown = time.Duration(cfg.OTPCooldownSeconds) * time.Second
	}
	if cfg.MaxOTPAttempts > 0 {
		p.MaxOTPAttempts = cfg.MaxOTPAttempts
	}
	if cfg.LockoutMinutes > 0 {
		p.LockoutDuration = time.Duration(cfg.LockoutMinutes) * time.Minute
	}
	if cfg.OTPLength > 0 {
		p.OTPLength = cfg.OTPLength
	}
	return p
}
