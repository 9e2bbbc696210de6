package repository

import (
	"context"

	"telegram-auth/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxFunc runs fn against a Repository whose members all share one transaction.
type TxFunc func(ctx context.Context, fn func(repo *Repository) error) error

type Repository struct {
	User      UserRepository
	Session   SessionRepository
	OTP       OTPRepository
	LinkState LinkStateRepository

	runTx TxFunc
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newQuerierRepository(db, log)
	repo.runTx = func(ctx context.Context, fn func(repo *Repository) error) error {
		return database.WithTx(ctx, db, func(tx pgx.Tx) error {
			txRepo := newQuerierRepository(tx, log)
			txRepo.runTx = inline(txRepo)
			return fn(txRepo)
		})
	}
	return repo
}

func newQuerierRepository(db database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		User:      NewUserRepository(db, log),
		Session:   NewSessionRepository(db, log),
		OTP:       NewOTPRepository(db, log),
		LinkState: NewLinkStateRepository(db, log),
	}
}

// Assemble builds a Repository from arbitrary implementations, for stores
// other than Postgres. A nil tx runs callbacks inline without atomicity.
func Assemble(user UserRepository, session SessionRepository, otp OTPRepository, link LinkStateRepository, tx TxFunc) *Repository {
	repo := &Repository{
		User:      user,
		Session:   session,
		OTP:       otp,
		LinkState: link,
		runTx:     tx,
	}
	if repo.runTx == nil {
		repo.runTx = inline(repo)
	}
	return repo
}

// Transaction executes fn atomically: every write made through the repo
// passed to fn is committed together, or rolled back if fn returns an error.
// Calling Transaction on a repo that is already transactional runs fn inline.
func (r *Repository) Transaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.runTx(ctx, fn)
}

func inline(repo *Repository) TxFunc {
	return func(ctx context.Context, fn func(repo *Repository) error) error {
		return fn(repo)
	}
}
