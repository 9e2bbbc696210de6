package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"telegram-auth/internal/data/entity"
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/dto/request"
	"telegram-auth/internal/dto/response"

	"github.com/google/uuid"
)

var noMeta = request.SessionMeta{}

func (f *fixture) initiate(t *testing.T) string {
	t.Helper()
	resp, err := f.telegram.Initiate(context.Background())
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	return resp.Code
}

func (f *fixture) send(chatID, text string) string {
	f.telegram.HandleInboundMessage(context.Background(), request.InboundMessage{
		ChatID:    chatID,
		Text:      text,
		Username:  strPtr("jdoe"),
		FirstName: strPtr("John"),
		LastName:  strPtr("Doe"),
	})
	sent := f.notifier.all()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1].text
}

func boundTo(state *entity.LinkState, chatID string) bool {
	return state.TelegramChatID != nil && *state.TelegramChatID == chatID
}

func (f *fixture) status(t *testing.T, code string) *response.StatusResponse {
	t.Helper()
	resp, err := f.telegram.Status(context.Background(), code, noMeta)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	return resp
}

func TestInitiate(t *testing.T) {
	f := newFixture(t)

	resp, err := f.telegram.Initiate(context.Background())
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	code, err := uuid.Parse(resp.Code)
	if err != nil {
		t.Fatalf("code %q is not a UUID: %v", resp.Code, err)
	}
	if resp.DeepLink != "https://t.me/auth_bot?start="+resp.Code {
		t.Errorf("DeepLink = %q", resp.DeepLink)
	}
	if want := f.clock.Now().Add(2 * time.Minute); !resp.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", resp.ExpiresAt, want)
	}

	state, err := f.repo.LinkState.FindByCode(context.Background(), code)
	if err != nil || state == nil {
		t.Fatalf("state not stored: %v", err)
	}
	if state.Verified || state.TelegramChatID != nil {
		t.Errorf("new state should be pending and unbound: %+v", state)
	}

	if got := f.status(t, resp.Code).Status; got != response.StatusPending {
		t.Errorf("Status = %q, want pending", got)
	}
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code := f.initiate(t)

	if reply := f.send("E1", "/start "+code); reply != msgRegisterSuccess {
		t.Fatalf("reply = %q, want binding success", reply)
	}

	st := f.status(t, code)
	if st.Status != response.StatusVerified || st.Registered == nil || *st.Registered {
		t.Fatalf("Status = %+v, want verified and not registered", st)
	}
	if st.Tokens != nil {
		t.Error("verified status must not carry tokens")
	}

	auth, err := f.telegram.Finalize(ctx, &request.FinalizeRequest{Code: code, PhoneNumber: "+1555"}, noMeta)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if auth.Tokens.AccessToken == "" || auth.Tokens.RefreshToken == "" {
		t.Error("Finalize returned empty tokens")
	}
	if auth.User.Username != "john-doe" {
		t.Errorf("Username = %q, want john-doe", auth.User.Username)
	}

	user, err := f.repo.User.FindByPhone(ctx, "+1555")
	if err != nil || user == nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.TelegramChatID == nil || *user.TelegramChatID != "E1" {
		t.Errorf("TelegramChatID = %v, want E1", user.TelegramChatID)
	}
	if user.TelegramProfileLink == nil || *user.TelegramProfileLink != "https://t.me/jdoe" {
		t.Errorf("TelegramProfileLink = %v", user.TelegramProfileLink)
	}
	if user.PasswordHash == "" || !strings.HasPrefix(user.PasswordHash, "!") {
		t.Errorf("chat-registered users must have an unusable password")
	}

	if got := f.status(t, code).Status; got != response.StatusInvalidCode {
		t.Errorf("Status after Finalize = %q, want invalid_code", got)
	}

	userID, _, err := f.sessions.Authenticate(ctx, auth.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if userID != user.ID {
		t.Errorf("token subject = %v, want %v", userID, user.ID)
	}
}

func TestStatus_LoginWhenUserLinkedExternally(t *testing.T) {
	f := newFixture(t)

	code := f.initiate(t)
	f.send("E1", "/start "+code)
	user := f.seedUser(t, "alice", "+1777", "E1")

	st := f.status(t, code)
	if st.Status != response.StatusSuccess || st.Registered == nil || !*st.Registered {
		t.Fatalf("Status = %+v, want success and registered", st)
	}
	if st.Tokens == nil || st.Tokens.AccessToken == "" {
		t.Fatal("success status must carry tokens")
	}

	userID, _, err := f.sessions.Authenticate(context.Background(), st.Tokens.AccessToken)
	if err != nil || userID != user.ID {
		t.Errorf("Authenticate = %v, %v; want %v", userID, err, user.ID)
	}

	if got := f.status(t, code).Status; got != response.StatusInvalidCode {
		t.Errorf("second poll = %q, want invalid_code", got)
	}
}

func TestStatus_Expiry(t *testing.T) {
	f := newFixture(t)
	code := f.initiate(t)

	f.clock.Advance(2 * time.Minute)
	if got := f.status(t, code).Status; got != response.StatusPending {
		t.Fatalf("at the window boundary Status = %q, want pending", got)
	}

	f.clock.Advance(time.Second)
	if got := f.status(t, code).Status; got != response.StatusExpired {
		t.Fatalf("Status = %q, want expired", got)
	}
	if got := f.status(t, code).Status; got != response.StatusInvalidCode {
		t.Errorf("repeated poll = %q, want invalid_code", got)
	}
}

func TestStatus_InvalidCodes(t *testing.T) {
	f := newFixture(t)

	for _, code := range []string{"not-a-uuid", "", uuid.NewString()} {
		if got := f.status(t, code).Status; got != response.StatusInvalidCode {
			t.Errorf("Status(%q) = %q, want invalid_code", code, got)
		}
	}
}

func TestHandleInbound_Replies(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "alice", "", "REG")

	tests := []struct {
		name   string
		chatID string
		text   string
		want   string
	}{
		{"unrecognized text", "E1", "hi", msgHelp},
		{"bare start unregistered", "E1", "/start", msgWelcomeNew},
		{"bare start registered", "REG", "/start", "👋 Welcome back, alice. Please use the specific login link from the app."},
		{"unknown code unregistered", "E1", "/start " + uuid.NewString(), msgRegisterInvalid},
		{"malformed code unregistered", "E1", "/start deadbeef", msgRegisterInvalid},
		{"unknown code registered", "REG", "/start " + uuid.NewString(), msgLoginInvalid},
		{"malformed code registered", "REG", "/start deadbeef", msgLoginInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.send(tt.chatID, tt.text); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleInbound_MalformedIsSilent(t *testing.T) {
	f := newFixture(t)
	f.send("E1", "")
	if sent := f.notifier.all(); len(sent) != 0 {
		t.Errorf("sent %v, want nothing", sent)
	}
}

func TestHandleInbound_DuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	code := f.initiate(t)

	if reply := f.send("E1", "/start "+code); reply != msgRegisterSuccess {
		t.Fatalf("first delivery reply = %q", reply)
	}
	if reply := f.send("E1", "/start "+code); reply != msgRegisterAlready {
		t.Fatalf("redelivery reply = %q, want already verified", reply)
	}
	if got := f.status(t, code).Status; got != response.StatusVerified {
		t.Errorf("Status = %q, want verified", got)
	}
}

func TestHandleInbound_AbandonedRegistrationIsCleanedUp(t *testing.T) {
	f := newFixture(t)

	first := f.initiate(t)
	f.send("E1", "/start "+first)

	second := f.initiate(t)
	if reply := f.send("E1", "/start "+second); reply != msgRegisterSuccess {
		t.Fatalf("reply = %q", reply)
	}

	if got := f.status(t, first).Status; got != response.StatusInvalidCode {
		t.Errorf("abandoned code Status = %q, want invalid_code", got)
	}
	if got := f.status(t, second).Status; got != response.StatusVerified {
		t.Errorf("new code Status = %q, want verified", got)
	}
}

func TestHandleInbound_BareStartClearsStaleStates(t *testing.T) {
	f := newFixture(t)

	code := f.initiate(t)
	f.send("E1", "/start "+code)
	f.send("E1", "/start")

	if got := f.status(t, code).Status; got != response.StatusInvalidCode {
		t.Errorf("Status = %q, want invalid_code", got)
	}
}

func TestHandleInbound_CodeBoundToAnotherChat(t *testing.T) {
	f := newFixture(t)
	code := f.initiate(t)

	f.send("E1", "/start "+code)
	if reply := f.send("E2", "/start "+code); reply != msgCodeConflict {
		t.Fatalf("reply = %q, want conflict", reply)
	}

	state, _ := f.repo.LinkState.FindByCode(context.Background(), uuid.MustParse(code))
	if state == nil || !boundTo(state, "E1") {
		t.Errorf("state = %+v, want still bound to E1", state)
	}
}

func TestHandleInbound_ConcurrentBindsFromDifferentChats(t *testing.T) {
	f := newFixture(t)
	code := f.initiate(t)

	const chats = 8
	var wg sync.WaitGroup
	for i := 0; i < chats; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.telegram.HandleInboundMessage(context.Background(), request.InboundMessage{
				ChatID: string(rune('A' + i)),
				Text:   "/start " + code,
			})
		}(i)
	}
	wg.Wait()

	var success, conflict int
	var winner string
	for _, d := range f.notifier.all() {
		switch d.text {
		case msgRegisterSuccess:
			success++
			winner = d.chatID
		case msgCodeConflict, msgRegisterConflict:
			conflict++
		default:
			t.Errorf("unexpected reply %q", d.text)
		}
	}
	if success != 1 || conflict != chats-1 {
		t.Fatalf("success=%d conflict=%d, want 1 and %d", success, conflict, chats-1)
	}

	state, _ := f.repo.LinkState.FindByCode(context.Background(), uuid.MustParse(code))
	if state == nil || !boundTo(state, winner) {
		t.Errorf("state bound to %v, want %s", state.TelegramChatID, winner)
	}
}

func TestHandleInbound_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	code := f.initiate(t)
	f.clock.Advance(3 * time.Minute)

	if reply := f.send("E1", "/start "+code); reply != "❌ Error: Code expired (valid for 2 minutes)." {
		t.Fatalf("reply = %q", reply)
	}
	if got := f.status(t, code).Status; got != response.StatusInvalidCode {
		t.Errorf("Status = %q, want invalid_code", got)
	}
}

func TestHandleInbound_RegisteredUserLogin(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "alice", "+1777", "E1")

	stale := f.initiate(t)
	f.send("E1", "/start "+stale)

	code := f.initiate(t)
	if reply := f.send("E1", "/start "+code); reply != "✅ Logged in as alice. Return to the app." {
		t.Fatalf("reply = %q", reply)
	}
	if reply := f.send("E1", "/start "+code); reply != msgLoginAlready {
		t.Errorf("redelivery reply = %q, want already logged in", reply)
	}

	if got := f.status(t, stale).Status; got != response.StatusInvalidCode {
		t.Errorf("stale code Status = %q, want invalid_code", got)
	}

	st := f.status(t, code)
	if st.Status != response.StatusSuccess {
		t.Fatalf("Status = %q, want success", st.Status)
	}
	userID, _, err := f.sessions.Authenticate(context.Background(), st.Tokens.AccessToken)
	if err != nil || userID != user.ID {
		t.Errorf("Authenticate = %v, %v", userID, err)
	}
}

func TestHandleInbound_RegisteredUserExpiredAndConflict(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "alice", "", "E1")

	taken := f.initiate(t)
	f.send("E2", "/start "+taken)
	if reply := f.send("E1", "/start "+taken); reply != msgCodeConflict {
		t.Errorf("reply = %q, want conflict", reply)
	}

	expired := f.initiate(t)
	f.clock.Advance(3 * time.Minute)
	if reply := f.send("E1", "/start "+expired); reply != msgLoginExpired {
		t.Errorf("reply = %q, want expired", reply)
	}
}

func TestHandleInbound_RegisteredUserVerifiedUnboundState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, "alice", "+1777", "E1")

	now := f.clock.Now()
	state := &entity.LinkState{Code: uuid.New(), FlowKind: entity.FlowRegistration, Verified: true, CreatedAt: now}
	stale := &entity.LinkState{Code: uuid.New(), FlowKind: entity.FlowRegistration, TelegramChatID: strPtr("E1"), Verified: true, CreatedAt: now}
	for _, st := range []*entity.LinkState{state, stale} {
		if err := f.repo.LinkState.Create(ctx, st); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if reply := f.send("E1", "/start "+state.Code.String()); reply != msgLoginAlready {
		t.Fatalf("reply = %q, want already logged in", reply)
	}

	got, err := f.repo.LinkState.FindByCode(ctx, state.Code)
	if err != nil || got == nil || !boundTo(got, "E1") {
		t.Fatalf("state = %+v, %v; want bound to E1", got, err)
	}
	if got, _ := f.repo.LinkState.FindByCode(ctx, stale.Code); got != nil {
		t.Errorf("stale state for E1 should be deleted, got %+v", got)
	}

	st := f.status(t, state.Code.String())
	if st.Status != response.StatusSuccess || st.Tokens == nil {
		t.Fatalf("Status = %+v, want success with tokens", st)
	}
	userID, _, err := f.sessions.Authenticate(ctx, st.Tokens.AccessToken)
	if err != nil || userID != user.ID {
		t.Errorf("Authenticate = %v, %v; want %v", userID, err, user.ID)
	}
}

// brokenUsers fails or panics on chat lookups.
type brokenUsers struct {
	repository.UserRepository
	panics bool
}

func (b *brokenUsers) FindByTelegramChatID(ctx context.Context, chatID string) (*entity.User, error) {
	if b.panics {
		panic("boom")
	}
	return nil, errors.New("connection refused")
}

func TestHandleInbound_InternalFailuresReplyServerError(t *testing.T) {
	for _, panics := range []bool{false, true} {
		base := newFixture(t)
		repo := repository.Assemble(
			&brokenUsers{UserRepository: base.repo.User, panics: panics},
			base.repo.Session, base.repo.OTP, base.repo.LinkState, nil,
		)
		f := newFixtureWithRepo(t, base.store, repo)

		if reply := f.send("E1", "/start "+uuid.NewString()); reply != msgServerError {
			t.Errorf("panics=%v reply = %q, want server error", panics, reply)
		}
	}
}

func TestFinalize_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "taken", "+1999", "")

	pending := f.initiate(t)

	verified := f.initiate(t)
	f.send("E1", "/start "+verified)

	tests := []struct {
		name string
		req  request.FinalizeRequest
		want error
	}{
		{"malformed code", request.FinalizeRequest{Code: "nope", PhoneNumber: "+1555"}, ErrUnauthenticated},
		{"unknown code", request.FinalizeRequest{Code: uuid.NewString(), PhoneNumber: "+1555"}, ErrUnauthenticated},
		{"unverified code", request.FinalizeRequest{Code: pending, PhoneNumber: "+1555"}, ErrUnauthenticated},
		{"phone taken", request.FinalizeRequest{Code: verified, PhoneNumber: "+1999"}, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.telegram.Finalize(ctx, &tt.req, noMeta)
			if !errors.Is(err, tt.want) {
				t.Errorf("Finalize err = %v, want %v", err, tt.want)
			}
		})
	}

	if got := f.status(t, verified).Status; got != response.StatusVerified {
		t.Errorf("failed Finalize must leave the state intact, Status = %q", got)
	}
}

func TestFinalize_Expired(t *testing.T) {
	f := newFixture(t)
	code := f.initiate(t)
	f.send("E1", "/start "+code)
	f.clock.Advance(3 * time.Minute)

	_, err := f.telegram.Finalize(context.Background(), &request.FinalizeRequest{Code: code, PhoneNumber: "+1555"}, noMeta)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want unauthenticated", err)
	}
	state, err := f.repo.LinkState.FindByCode(context.Background(), uuid.MustParse(code))
	if err != nil {
		t.Fatal(err)
	}
	if state != nil {
		t.Error("expired state should be deleted")
	}
}

func TestFinalize_Names(t *testing.T) {
	tests := []struct {
		name      string
		sender    request.InboundMessage
		req       request.FinalizeRequest
		existing  []string
		wantUser  string
		wantFirst string
	}{
		{
			name:      "client names win",
			sender:    request.InboundMessage{FirstName: strPtr("John"), LastName: strPtr("Doe")},
			req:       request.FinalizeRequest{FirstName: strPtr("Jane"), LastName: strPtr("Roe")},
			wantUser:  "jane-roe",
			wantFirst: "Jane",
		},
		{
			name:      "chat profile fallback",
			sender:    request.InboundMessage{FirstName: strPtr("John"), LastName: strPtr("Doe")},
			wantUser:  "john-doe",
			wantFirst: "John",
		},
		{
			name:     "no names",
			sender:   request.InboundMessage{},
			wantUser: "user_C1",
		},
		{
			name:      "handle collision",
			sender:    request.InboundMessage{FirstName: strPtr("John"), LastName: strPtr("Doe")},
			existing:  []string{"john-doe", "john-doe1"},
			wantUser:  "john-doe2",
			wantFirst: "John",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, name := range tt.existing {
				f.seedUser(t, name, "", "")
			}

			code := f.initiate(t)
			msg := tt.sender
			msg.ChatID = "C1"
			msg.Text = "/start " + code
			f.telegram.HandleInboundMessage(context.Background(), msg)

			req := tt.req
			req.Code = code
			req.PhoneNumber = "+1555"
			auth, err := f.telegram.Finalize(context.Background(), &req, noMeta)
			if err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			if auth.User.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", auth.User.Username, tt.wantUser)
			}
			if auth.User.FirstName != tt.wantFirst {
				t.Errorf("FirstName = %q, want %q", auth.User.FirstName, tt.wantFirst)
			}
		})
	}
}

// failingCreate rejects every user insert.
type failingCreate struct {
	repository.UserRepository
}

func (failingCreate) Create(ctx context.Context, user *entity.User) error {
	return errors.New("disk full")
}

func TestFinalize_CreateFailureKeepsState(t *testing.T) {
	base := newFixture(t)
	repo := repository.Assemble(
		failingCreate{base.repo.User},
		base.repo.Session, base.repo.OTP, base.repo.LinkState, nil,
	)
	f := newFixtureWithRepo(t, base.store, repo)

	code := f.initiate(t)
	f.send("E1", "/start "+code)

	_, err := f.telegram.Finalize(context.Background(), &request.FinalizeRequest{Code: code, PhoneNumber: "+1555"}, noMeta)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
	if got := f.status(t, code).Status; got != response.StatusVerified {
		t.Errorf("Status = %q, want verified so the client can retry", got)
	}
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "alice", "+1777", "E1")

	profile, err := f.telegram.Profile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !profile.TelegramLinked || profile.Username != "alice" {
		t.Errorf("profile = %+v", profile)
	}

	if _, err := f.telegram.Profile(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

// racingUsers inserts a competing user right before the first Create, the way
// a concurrent registration that commits first would.
type racingUsers struct {
	repository.UserRepository
	rival func(user *entity.User) *entity.User
	done  bool
}

func (r *racingUsers) Create(ctx context.Context, user *entity.User) error {
	if !r.done {
		r.done = true
		if err := r.UserRepository.Create(ctx, r.rival(user)); err != nil {
			return err
		}
	}
	return r.UserRepository.Create(ctx, user)
}

func TestFinalize_UniquenessRaces(t *testing.T) {
	rival := func(mutate func(rival, user *entity.User)) func(*entity.User) *entity.User {
		return func(user *entity.User) *entity.User {
			r := &entity.User{Base: entity.Base{ID: uuid.New()}, Username: "rival-" + uuid.NewString()}
			mutate(r, user)
			return r
		}
	}

	tests := []struct {
		name      string
		first     string
		last      string
		rival     func(*entity.User) *entity.User
		wantUser  string
		wantErr   error
		wantInMsg string
	}{
		{
			name:     "handle taken retries with next suffix",
			first:    "John",
			last:     "Doe",
			rival:    rival(func(r, u *entity.User) { r.Username = u.Username }),
			wantUser: "john-doe1",
		},
		{
			name:      "phone taken",
			first:     "John",
			last:      "Doe",
			rival:     rival(func(r, u *entity.User) { r.Phone = u.Phone }),
			wantErr:   ErrConflict,
			wantInMsg: "Phone number already registered.",
		},
		{
			name:      "chat taken by a user whose handle mentions phone",
			first:     "Phone",
			last:      "Shop",
			rival:     rival(func(r, u *entity.User) { r.TelegramChatID = u.TelegramChatID }),
			wantErr:   ErrConflict,
			wantInMsg: "This Telegram account is already registered.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newFixture(t)
			repo := repository.Assemble(
				&racingUsers{UserRepository: base.repo.User, rival: tt.rival},
				base.repo.Session, base.repo.OTP, base.repo.LinkState, nil,
			)
			f := newFixtureWithRepo(t, base.store, repo)

			code := f.initiate(t)
			f.telegram.HandleInboundMessage(context.Background(), request.InboundMessage{
				ChatID:    "E1",
				Text:      "/start " + code,
				FirstName: strPtr(tt.first),
				LastName:  strPtr(tt.last),
			})

			auth, err := f.telegram.Finalize(context.Background(), &request.FinalizeRequest{Code: code, PhoneNumber: "+1555"}, noMeta)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if msg := AsAuthError(err).Message; msg != tt.wantInMsg {
					t.Errorf("message = %q, want %q", msg, tt.wantInMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			if auth.User.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", auth.User.Username, tt.wantUser)
			}
		})
	}
}
