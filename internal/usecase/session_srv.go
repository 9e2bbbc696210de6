package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/dto/request"
	"telegram-auth/internal/dto/response"
	"telegram-auth/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SessionService interface {
	// Mint creates a session row through repo, which may be transactional,
	// and signs the matching token pair.
	Mint(ctx context.Context, repo *repository.Repository, user *entity.User, meta request.SessionMeta) (*response.TokenResponse, error)
	// Authenticate validates an access token against its live session.
	Authenticate(ctx context.Context, accessToken string) (userID, sessionID uuid.UUID, err error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
}

type sessionService struct {
	repo   *repository.Repository
	tokens *utils.TokenIssuer
	log    *zap.Logger
	now    func() time.Time
}

func NewSessionService(repo *repository.Repository, tokens *utils.TokenIssuer, log *zap.Logger, now func() time.Time) SessionService {
	if now == nil {
		now = time.Now
	}
	return &sessionService{
		repo:   repo,
		tokens: tokens,
		log:    log.With(zap.String("service", "session")),
		now:    now,
	}
}

func (s *sessionService) Mint(ctx context.Context, repo *repository.Repository, user *entity.User, meta request.SessionMeta) (*response.TokenResponse, error) {
	if repo == nil {
		repo = s.repo
	}

	now := s.now()
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		UserID:    user.ID,
		Token:     uuid.New(),
		UserAgent: optional(meta.UserAgent),
		IPAddress: optional(meta.IPAddress),
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}

	if err := repo.Session.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	access, refresh, err := s.tokens.IssuePair(user.ID.String(), session.ID.String(), session.Token.String(), now)
	if err != nil {
		return nil, fmt.Errorf("sign tokens: %w", err)
	}

	s.log.Info("Session created",
		zap.String("user_id", user.ID.String()),
		zap.String("session_id", session.ID.String()),
	)

	tokens := response.SessionToTokens(session, access, refresh)
	return &tokens, nil
}

func (s *sessionService) Authenticate(ctx context.Context, accessToken string) (uuid.UUID, uuid.UUID, error) {
	unauthenticated := newError(KindUnauthenticated, "Invalid or expired token")

	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return uuid.Nil, uuid.Nil, unauthenticated
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, unauthenticated
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, unauthenticated
	}

	session, err := s.repo.Session.FindByID(ctx, sessionID)
	if err != nil {
		s.log.Error("Failed to load session", zap.Error(err), zap.String("session_id", sessionID.String()))
		return uuid.Nil, uuid.Nil, internalError("failed to validate session", err)
	}
	if session == nil || session.UserID != userID || !session.IsActive(s.now()) {
		return uuid.Nil, uuid.Nil, unauthenticated
	}

	return userID, sessionID, nil
}

func (s *sessionService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.repo.Session.Revoke(ctx, sessionID); err != nil {
		s.log.Error("Failed to revoke session", zap.Error(err), zap.String("session_id", sessionID.String()))
		return internalError("failed to logout", err)
	}

	s.log.Info("User logged out", zap.String("session_id", sessionID.String()))
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
