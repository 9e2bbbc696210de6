package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/data/repository/memory"
	"telegram-auth/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type delivery struct {
	chatID string
	text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []delivery
}

func (n *recordingNotifier) Deliver(ctx context.Context, endpointID, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, delivery{chatID: endpointID, text: text})
}

func (n *recordingNotifier) all() []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivery(nil), n.sent...)
}

func (n *recordingNotifier) last(t *testing.T) delivery {
	t.Helper()
	sent := n.all()
	if len(sent) == 0 {
		t.Fatal("no message delivered")
	}
	return sent[len(sent)-1]
}

type recordingFallback struct {
	mu    sync.Mutex
	codes map[string]string
}

func (f *recordingFallback) SendOTP(ctx context.Context, phone, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[phone] = code
}

func (f *recordingFallback) code(phone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[phone]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store    *memory.Store
	repo     *repository.Repository
	notifier *recordingNotifier
	fallback *recordingFallback
	clock    *clock
	sessions SessionService
	telegram TelegramService
	otp      OTPService
}

var testJWT = utils.JWTConfig{
	Secret:           "test-secret",
	Issuer:           "telegram-auth-test",
	AccessTTLMinutes: 15,
	RefreshTTLHours:  24,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	return newFixtureWithRepo(t, store, store.Repository())
}

func newFixtureWithRepo(t *testing.T, store *memory.Store, repo *repository.Repository) *fixture {
	t.Helper()

	// Tokens are validated against wall-clock time, so the fake clock starts now.
	clk := &clock{t: time.Now().Truncate(time.Second)}
	log := zap.NewNop()
	f := &fixture{
		store:    store,
		repo:     repo,
		notifier: &recordingNotifier{},
		fallback: &recordingFallback{},
		clock:    clk,
	}
	f.sessions = NewSessionService(repo, utils.NewTokenIssuer(testJWT), log, clk.Now)
	f.telegram = NewTelegramService(repo, f.sessions, f.notifier, DefaultPolicy(), "auth_bot", log, clk.Now)
	f.otp = NewOTPService(repo, f.sessions, f.notifier, f.fallback, DefaultPolicy(), "TestApp", log, clk.Now)
	return f
}

func strPtr(s string) *string { return &s }

// seedUser inserts a user directly, bypassing registration.
func (f *fixture) seedUser(t *testing.T, username, phone, chatID string) *entity.User {
	t.Helper()
	now := f.clock.Now()
	u := &entity.User{
		Base:         entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username:     username,
		PasswordHash: "!unusable",
		IsActive:     true,
	}
	if phone != "" {
		u.Phone = strPtr(phone)
	}
	if chatID != "" {
		u.TelegramChatID = strPtr(chatID)
	}
	if err := f.repo.User.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
