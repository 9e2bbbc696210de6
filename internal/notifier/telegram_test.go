package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeBotAPI answers getMe and records sendMessage calls.
func fakeBotAPI(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var sent []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Auth","username":"auth_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			sent = append(sent, r.Form.Get("chat_id")+":"+r.Form.Get("text"))
			mu.Unlock()
			result, _ := json.Marshal(map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 1, "type": "private"}})
			_, _ = w.Write([]byte(`{"ok":true,"result":` + string(result) + `}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), sent...)
	}
}

func TestTelegramNotifier_Deliver(t *testing.T) {
	srv, sent := fakeBotAPI(t)

	n, err := NewTelegramNotifier("TOKEN", srv.URL+"/bot%s/%s", time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	n.Deliver(context.Background(), "12345", "hello")

	got := sent()
	if len(got) != 1 || got[0] != "12345:hello" {
		t.Errorf("sent = %v, want [12345:hello]", got)
	}
}

func TestTelegramNotifier_InvalidChatIDDropped(t *testing.T) {
	srv, sent := fakeBotAPI(t)

	n, err := NewTelegramNotifier("TOKEN", srv.URL+"/bot%s/%s", time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	n.Deliver(context.Background(), "not-a-number", "hello")

	if got := sent(); len(got) != 0 {
		t.Errorf("sent = %v, want nothing", got)
	}
}

func TestTelegramNotifier_DeliveryFailureIsSwallowed(t *testing.T) {
	srv, _ := fakeBotAPI(t)

	n, err := NewTelegramNotifier("TOKEN", srv.URL+"/bot%s/%s", time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	srv.Close()

	// Must return without panicking even though the API is gone.
	n.Deliver(context.Background(), "12345", "hello")
}

func TestNew_FallsBackToLogNotifier(t *testing.T) {
	if _, ok := New("", "", time.Second, zap.NewNop()).(*LogNotifier); !ok {
		t.Error("empty token should yield a LogNotifier")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	if _, ok := New("BAD", srv.URL+"/bot%s/%s", time.Second, zap.NewNop()).(*LogNotifier); !ok {
		t.Error("rejected token should yield a LogNotifier")
	}
}
