package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/dto/request"
	"telegram-auth/internal/dto/response"
	"telegram-auth/internal/notifier"
	"telegram-auth/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Chat replies.
const (
	msgHelp             = "Hi! To sign in, open the app and tap the Telegram login button. It will bring you back here with a one-time link."
	msgWelcomeNew       = "Welcome! Please use the deep link from the registration page in the app."
	msgWelcomeBack      = "👋 Welcome back, %s. Please use the specific login link from the app."
	msgLoginInvalid     = "❌ Invalid login code. Please initiate login again from the app."
	msgLoginExpired     = "❌ Login code expired. Please initiate login again from the app."
	msgLoginAlready     = "✅ You are already logged in. Return to the app."
	msgLoginSuccess     = "✅ Logged in as %s. Return to the app."
	msgCodeConflict     = "❌ This code is already linked to a different Telegram account."
	msgRegisterInvalid  = "❌ Verification Failed: Invalid registration code."
	msgRegisterExpired  = "❌ Error: Code expired (valid for %d minutes)."
	msgRegisterAlready  = "✅ You are already verified (bound to this code). Please return to the app."
	msgRegisterSuccess  = "✅ Binding successful! Please go back to the app to complete registration."
	msgRegisterConflict = "❌ Verification failed. It looks like this Telegram account is already linked to another process. Please try logging in again."
	msgServerError      = "⚠️ Server Error: We experienced a technical issue. Please try again later."
)

const msgFinalizeFailed = "Verification failed, code expired, or code not found. Please restart the process."

const maxHandleAttempts = 3

type TelegramService interface {
	Initiate(ctx context.Context) (*response.InitiateResponse, error)
	// HandleInboundMessage never fails: every outcome, including internal
	// errors, is reported to the chat and logged.
	HandleInboundMessage(ctx context.Context, msg request.InboundMessage)
	Status(ctx context.Context, code string, meta request.SessionMeta) (*response.StatusResponse, error)
	Finalize(ctx context.Context, req *request.FinalizeRequest, meta request.SessionMeta) (*response.AuthResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error)
}

type telegramService struct {
	repo        *repository.Repository
	sessions    SessionService
	notifier    notifier.Notifier
	policy      Policy
	botUsername string
	log         *zap.Logger
	now         func() time.Time
}

func NewTelegramService(
	repo *repository.Repository,
	sessions SessionService,
	notify notifier.Notifier,
	policy Policy,
	botUsername string,
	log *zap.Logger,
	now func() time.Time,
) TelegramService {
	if now == nil {
		now = time.Now
	}
	return &telegramService{
		repo:        repo,
		sessions:    sessions,
		notifier:    notify,
		policy:      policy,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		log:         log.With(zap.String("service", "telegram")),
		now:         now,
	}
}

func (s *telegramService) Initiate(ctx context.Context) (*response.InitiateResponse, error) {
	state := &entity.LinkState{
		Code:      uuid.New(),
		FlowKind:  entity.FlowRegistration,
		CreatedAt: s.now(),
	}

	if err := s.repo.LinkState.Create(ctx, state); err != nil {
		s.log.Error("Failed to create link state", zap.Error(err))
		return nil, internalError("failed to initiate Telegram flow", err)
	}

	s.log.Info("Telegram flow initiated", zap.String("code", state.Code.String()))

	resp := &response.InitiateResponse{
		Code:      state.Code.String(),
		ExpiresAt: state.CreatedAt.Add(s.policy.CodeExpiry),
	}
	if s.botUsername != "" {
		resp.DeepLink = fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, resp.Code)
	}
	return resp, nil
}

func (s *telegramService) HandleInboundMessage(ctx context.Context, msg request.InboundMessage) {
	if msg.ChatID == "" {
		s.log.Warn("Inbound message without chat ID ignored")
		return
	}

	// Replies go out only after the transaction has committed.
	if reply := s.processInbound(ctx, msg); reply != "" {
		s.notifier.Deliver(ctx, msg.ChatID, reply)
	}
}

func (s *telegramService) processInbound(ctx context.Context, msg request.InboundMessage) (reply string) {
	log := s.log.With(zap.String("chat_id", msg.ChatID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("Panic while handling inbound message", zap.Any("panic", p), zap.Stack("stack"))
			reply = msgServerError
		}
	}()

	var err error
	switch in := ParseInbound(msg.Text).(type) {
	case Malformed:
		log.Debug("Inbound message without text ignored")
		return ""
	case UnrecognizedText:
		return msgHelp
	case StartCommand:
		reply, err = s.bind(ctx, msg, in.Code, log)
	}

	if err != nil {
		log.Error("Failed to handle inbound message", zap.Error(err))
		return msgServerError
	}
	return reply
}

// bind routes a /start command to the registered or unregistered path
// depending on whether the chat already belongs to a user.
func (s *telegramService) bind(ctx context.Context, msg request.InboundMessage, rawCode string, log *zap.Logger) (string, error) {
	user, err := s.repo.User.FindByTelegramChatID(ctx, msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("find user by chat: %w", err)
	}

	if user != nil {
		return s.bindRegistered(ctx, user, msg, rawCode, log)
	}
	return s.bindUnregistered(ctx, msg, rawCode, log)
}

func (s *telegramService) bindRegistered(ctx context.Context, user *entity.User, msg request.InboundMessage, rawCode string, log *zap.Logger) (string, error) {
	if rawCode == "" {
		return fmt.Sprintf(msgWelcomeBack, user.Username), nil
	}
	code, err := uuid.Parse(rawCode)
	if err != nil {
		return msgLoginInvalid, nil
	}

	var reply string
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		state, err := tx.LinkState.FindByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}

		switch {
		case state == nil:
			reply = msgLoginInvalid
		case state.BoundElsewhere(msg.ChatID):
			log.Warn("Code bound to a different chat", zap.String("code", code.String()))
			reply = msgCodeConflict
		case state.IsExpired(s.now(), s.policy.CodeExpiry):
			if err := tx.LinkState.Delete(ctx, code); err != nil {
				return err
			}
			reply = msgLoginExpired
		case state.Verified:
			if state.TelegramChatID == nil {
				if err := s.attach(ctx, tx, state, msg); err != nil {
					return err
				}
			}
			reply = msgLoginAlready
		default:
			if err := s.attach(ctx, tx, state, msg); err != nil {
				return err
			}
			log.Info("Registered user bound login code",
				zap.String("code", code.String()),
				zap.String("user_id", user.ID.String()),
			)
			reply = fmt.Sprintf(msgLoginSuccess, user.Username)
		}
		return nil
	})

	if errors.Is(err, repository.ErrDuplicate) {
		log.Warn("Concurrent bind lost", zap.String("code", code.String()), zap.Error(err))
		return msgCodeConflict, nil
	}
	return reply, err
}

func (s *telegramService) bindUnregistered(ctx context.Context, msg request.InboundMessage, rawCode string, log *zap.Logger) (string, error) {
	code, parseErr := uuid.Parse(rawCode)
	keep := uuid.Nil
	if rawCode != "" && parseErr == nil {
		keep = code
	}

	var reply string
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// Abandoned registrations for this chat. The current code is kept so a
		// redelivered message finds its own binding intact.
		removed, err := tx.LinkState.DeleteByChatID(ctx, msg.ChatID, keep)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Info("Removed stale link states", zap.Int64("count", removed))
		}

		if rawCode == "" {
			reply = msgWelcomeNew
			return nil
		}
		if parseErr != nil {
			reply = msgRegisterInvalid
			return nil
		}

		state, err := tx.LinkState.FindByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}

		switch {
		case state == nil:
			reply = msgRegisterInvalid
		case state.IsExpired(s.now(), s.policy.CodeExpiry):
			if err := tx.LinkState.Delete(ctx, code); err != nil {
				return err
			}
			reply = fmt.Sprintf(msgRegisterExpired, int(s.policy.CodeExpiry.Minutes()))
		case state.BoundElsewhere(msg.ChatID):
			log.Warn("Code bound to a different chat", zap.String("code", code.String()))
			reply = msgCodeConflict
		case state.Verified:
			reply = msgRegisterAlready
		default:
			if err := s.attach(ctx, tx, state, msg); err != nil {
				return err
			}
			log.Info("Chat bound to registration code", zap.String("code", code.String()))
			reply = msgRegisterSuccess
		}
		return nil
	})

	if errors.Is(err, repository.ErrDuplicate) {
		log.Warn("Concurrent bind lost", zap.String("code", rawCode), zap.Error(err))
		return msgRegisterConflict, nil
	}
	return reply, err
}

// attach binds state to the sender's chat, copies the sender profile, marks
// it verified and clears any other state still bound to that chat.
func (s *telegramService) attach(ctx context.Context, tx *repository.Repository, state *entity.LinkState, msg request.InboundMessage) error {
	if _, err := tx.LinkState.DeleteByChatID(ctx, msg.ChatID, state.Code); err != nil {
		return err
	}

	chatID := msg.ChatID
	state.TelegramChatID = &chatID
	state.TelegramUsername = msg.Username
	state.TelegramFirstName = msg.FirstName
	state.TelegramLastName = msg.LastName
	state.Verified = true

	return tx.LinkState.Update(ctx, state)
}

func (s *telegramService) Status(ctx context.Context, code string, meta request.SessionMeta) (*response.StatusResponse, error) {
	id, err := uuid.Parse(code)
	if err != nil {
		return &response.StatusResponse{Status: response.StatusInvalidCode, Message: "Invalid code format."}, nil
	}

	var resp *response.StatusResponse
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		state, err := tx.LinkState.FindByCodeForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if state == nil {
			resp = &response.StatusResponse{Status: response.StatusInvalidCode, Message: "Code not found."}
			return nil
		}

		if state.IsExpired(s.now(), s.policy.CodeExpiry) {
			if err := tx.LinkState.Delete(ctx, id); err != nil {
				return err
			}
			s.log.Info("Link state expired", zap.String("code", code))
			resp = &response.StatusResponse{Status: response.StatusExpired, Message: "Window expired."}
			return nil
		}

		if !state.Verified {
			resp = &response.StatusResponse{Status: response.StatusPending, Message: "Awaiting Telegram interaction."}
			return nil
		}

		var user *entity.User
		if state.TelegramChatID != nil {
			user, err = tx.User.FindByTelegramChatID(ctx, *state.TelegramChatID)
			if err != nil {
				return err
			}
		}

		if user == nil {
			resp = &response.StatusResponse{
				Status:     response.StatusVerified,
				Message:    "Telegram verification complete. Proceed to final step.",
				Registered: boolPtr(false),
			}
			return nil
		}

		tokens, err := s.sessions.Mint(ctx, tx, user, meta)
		if err != nil {
			return err
		}
		if err := tx.LinkState.Delete(ctx, id); err != nil {
			return err
		}

		s.log.Info("Telegram login completed",
			zap.String("code", code),
			zap.String("user_id", user.ID.String()),
		)
		resp = &response.StatusResponse{
			Status:     response.StatusSuccess,
			Message:    "Login successful.",
			Registered: boolPtr(true),
			Tokens:     tokens,
		}
		return nil
	})

	if err != nil {
		s.log.Error("Failed to check Telegram status", zap.Error(err), zap.String("code", code))
		return nil, internalError("failed to check status", err)
	}
	return resp, nil
}

func (s *telegramService) Finalize(ctx context.Context, req *request.FinalizeRequest, meta request.SessionMeta) (*response.AuthResponse, error) {
	code, err := uuid.Parse(req.Code)
	if err != nil {
		return nil, newError(KindUnauthenticated, msgFinalizeFailed)
	}

	for attempt := 1; ; attempt++ {
		result, outcome, err := s.finalize(ctx, code, req, meta)

		// A concurrent registration took the handle between the existence
		// check and the insert. The next attempt sees it and moves to the
		// next suffix.
		if repository.DuplicateConstraint(err) == repository.ConstraintUserUsername && attempt < maxHandleAttempts {
			s.log.Info("Handle taken concurrently, retrying",
				zap.String("code", req.Code),
				zap.Int("attempt", attempt),
			)
			continue
		}

		switch {
		case errors.Is(err, repository.ErrDuplicate):
			s.log.Warn("Registration lost a uniqueness race", zap.Error(err), zap.String("code", req.Code))
			return nil, finalizeConflict(repository.DuplicateConstraint(err))
		case err != nil:
			s.log.Error("Failed to finalize registration", zap.Error(err), zap.String("code", req.Code))
			return nil, internalError("Internal server error during user creation.", err)
		case outcome != nil:
			return nil, outcome
		}

		s.log.Info("User registered via Telegram",
			zap.String("user_id", result.User.ID),
			zap.String("username", result.User.Username),
			zap.String("phone", utils.MaskPhone(req.PhoneNumber)),
		)
		return result, nil
	}
}

// finalize runs one registration attempt in a single transaction. outcome
// carries client-facing rejections that still commit (an expired state is
// deleted); err is anything that rolled the attempt back.
func (s *telegramService) finalize(ctx context.Context, code uuid.UUID, req *request.FinalizeRequest, meta request.SessionMeta) (result *response.AuthResponse, outcome, err error) {
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		state, err := tx.LinkState.FindByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if state == nil || !state.Verified || state.FlowKind != entity.FlowRegistration || state.TelegramChatID == nil {
			outcome = newError(KindUnauthenticated, msgFinalizeFailed)
			return nil
		}
		if state.IsExpired(s.now(), s.policy.CodeExpiry) {
			if err := tx.LinkState.Delete(ctx, code); err != nil {
				return err
			}
			outcome = newError(KindUnauthenticated, msgFinalizeFailed)
			return nil
		}

		exists, err := tx.User.ExistsByPhone(ctx, req.PhoneNumber)
		if err != nil {
			return err
		}
		if exists {
			outcome = finalizeConflict(repository.ConstraintUserPhone)
			return nil
		}

		user, err := s.newUser(ctx, tx, state, req)
		if err != nil {
			return err
		}
		if err := tx.User.Create(ctx, user); err != nil {
			return err
		}
		if err := tx.LinkState.Delete(ctx, code); err != nil {
			return err
		}

		tokens, err := s.sessions.Mint(ctx, tx, user, meta)
		if err != nil {
			return err
		}

		result = &response.AuthResponse{
			User:   response.UserToResponse(user),
			Tokens: *tokens,
		}
		return nil
	})
	return result, outcome, err
}

func finalizeConflict(constraint string) *AuthError {
	switch constraint {
	case repository.ConstraintUserPhone:
		return newError(KindConflict, "Phone number already registered.")
	case repository.ConstraintUserUsername:
		return newError(KindConflict, "Could not allocate a username. Please try again.")
	default:
		return newError(KindConflict, "This Telegram account is already registered.")
	}
}

func (s *telegramService) newUser(ctx context.Context, tx *repository.Repository, state *entity.LinkState, req *request.FinalizeRequest) (*entity.User, error) {
	firstName := firstNonEmpty(req.FirstName, state.TelegramFirstName)
	lastName := firstNonEmpty(req.LastName, state.TelegramLastName)

	username, err := uniqueHandle(ctx, tx.User, baseHandle(firstName, lastName, *state.TelegramChatID))
	if err != nil {
		return nil, err
	}

	password, err := utils.UnusablePassword()
	if err != nil {
		return nil, fmt.Errorf("generate unusable password: %w", err)
	}

	var profileLink *string
	if state.TelegramUsername != nil && *state.TelegramUsername != "" {
		link := "https://t.me/" + *state.TelegramUsername
		profileLink = &link
	}

	now := s.now()
	phone := req.PhoneNumber
	return &entity.User{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:            username,
		PasswordHash:        password,
		FirstName:           firstName,
		LastName:            lastName,
		Phone:               &phone,
		IsActive:            true,
		TelegramChatID:      state.TelegramChatID,
		TelegramUsername:    state.TelegramUsername,
		TelegramFirstName:   state.TelegramFirstName,
		TelegramLastName:    state.TelegramLastName,
		TelegramProfileLink: profileLink,
	}, nil
}

func (s *telegramService) Profile(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error) {
	user, err := s.repo.User.FindByID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to load profile", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, internalError("failed to load profile", err)
	}
	if user == nil {
		return nil, newError(KindNotFound, "User not found")
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func boolPtr(b bool) *bool {
	return &b
}
