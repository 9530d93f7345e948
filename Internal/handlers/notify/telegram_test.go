package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/fazecat/mogulscan/Internal/utils/config"
)

func TestTelegram_Send(t *testing.T) {
	var hits int32
	var gotPath, gotChat, gotMode, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = r.ParseForm()
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotMode = r.PostForm.Get("parse_mode")
		gotText = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegram(config.TelegramConfig{Enabled: true, BotToken: "123:abc", ChatID: "42"})
	n.baseURL = srv.URL
	n.Send(context.Background(), "<b>hello</b>")

	if hits != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}
	if gotPath != "/bot123:abc/sendMessage" || gotChat != "42" || gotMode != "HTML" || gotText != "<b>hello</b>" {
		t.Errorf("request path=%s chat=%s mode=%s text=%s", gotPath, gotChat, gotMode, gotText)
	}
}

func TestTelegram_FailuresAreSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegram(config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c"})
	n.baseURL = srv.URL
	n.Send(context.Background(), "msg")

	if err := n.sendMessage(context.Background(), "msg"); err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("sendMessage() error = %v, want 400", err)
	}
}

func TestTelegram_Disabled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		cfg  config.TelegramConfig
	}{
		{name: "flag off", cfg: config.TelegramConfig{Enabled: false, BotToken: "t", ChatID: "c"}},
		{name: "missing token", cfg: config.TelegramConfig{Enabled: true, ChatID: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewTelegram(tt.cfg)
			n.baseURL = srv.URL
			if n.Enabled() {
				t.Error("Enabled() = true")
			}
			n.Send(context.Background(), "msg")
		})
	}
	if hits != 0 {
		t.Errorf("disabled notifier made %d requests", hits)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("ж", 5000)
	got := truncate(long, maxMessageRunes)
	if utf8.RuneCountInString(got) != maxMessageRunes {
		t.Errorf("truncated to %d runes", utf8.RuneCountInString(got))
	}
	if truncate("short", 10) != "short" {
		t.Error("short message changed")
	}
}
