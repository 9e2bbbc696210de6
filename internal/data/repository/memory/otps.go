package memory

import (
	"context"
	"fmt"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"

	"github.com/google/uuid"
)

type otpRepo struct{ v *view }

func (r *otpRepo) Create(ctx context.Context, otp *entity.OTP) error {
	defer r.v.lock()()
	s := r.v.s

	for _, o := range s.otps {
		if o.ID == otp.ID {
			return fmt.Errorf("create OTP: %w", &repository.DuplicateError{Constraint: "otps_pkey"})
		}
		if !otp.IsUsed && !o.IsUsed && o.PhoneNumber == otp.PhoneNumber {
			return fmt.Errorf("create OTP: %w", &repository.DuplicateError{Constraint: repository.ConstraintOTPOneUnused})
		}
	}
	s.otps = append(s.otps, *otp)
	return nil
}

// latest scans newest first; among equal timestamps the later insert wins.
func (r *otpRepo) latest(match func(o *entity.OTP) bool) *entity.OTP {
	var best *entity.OTP
	for i := range r.v.s.otps {
		o := r.v.s.otps[i]
		if !match(&o) {
			continue
		}
		if best == nil || !o.CreatedAt.Before(best.CreatedAt) {
			best = &o
		}
	}
	return best
}

func (r *otpRepo) FindLatestByPhone(ctx context.Context, phone string) (*entity.OTP, error) {
	defer r.v.lock()()
	return r.latest(func(o *entity.OTP) bool { return o.PhoneNumber == phone }), nil
}

func (r *otpRepo) FindLatestUnused(ctx context.Context, phone, code string) (*entity.OTP, error) {
	defer r.v.lock()()
	return r.latest(func(o *entity.OTP) bool {
		return o.PhoneNumber == phone && o.Code == code && !o.IsUsed
	}), nil
}

func (r *otpRepo) InvalidateUnused(ctx context.Context, phone string) error {
	defer r.v.lock()()
	for i := range r.v.s.otps {
		if r.v.s.otps[i].PhoneNumber == phone {
			r.v.s.otps[i].IsUsed = true
		}
	}
	return nil
}

func (r *otpRepo) MarkAsUsed(ctx context.Context, otpID uuid.UUID) error {
	defer r.v.lock()()
	for i := range r.v.s.otps {
		if r.v.s.otps[i].ID == otpID {
			r.v.s.otps[i].IsUsed = true
			return nil
		}
	}
	return fmt.Errorf("OTP %s not found", otpID.String())
}

// UnusedCount reports how many unused OTPs exist for phone.
func (s *Store) UnusedCount(phone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.otps {
		if o.PhoneNumber == phone && !o.IsUsed {
			n++
		}
	}
	return n
}
