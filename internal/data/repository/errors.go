package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when a write loses against a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

// Unique constraints callers branch on. Names follow the Postgres defaults
// for the columns declared UNIQUE in the init migration.
const (
	ConstraintUserUsername  = "users_username_key"
	ConstraintUserPhone     = "users_phone_key"
	ConstraintUserTelegram  = "users_telegram_chat_id_key"
	ConstraintStateTelegram = "telegram_link_states_telegram_chat_id_key"
	ConstraintOTPOneUnused  = "idx_otps_one_unused"
	ConstraintSessionToken  = "sessions_token_key"
)

// DuplicateError names the unique constraint a write violated.
// errors.Is(err, ErrDuplicate) holds for every DuplicateError.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return ErrDuplicate.Error() + ": " + e.Constraint
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateConstraint returns the violated constraint, or "" when err is not
// a unique violation.
func DuplicateConstraint(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Constraint
	}
	return ""
}

const pgUniqueViolation = "23505"

// mapWriteError converts unique violations into a DuplicateError.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &DuplicateError{Constraint: pgErr.ConstraintName}
	}
	return err
}
