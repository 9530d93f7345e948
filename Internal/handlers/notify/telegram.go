package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fazecat/mogulscan/Internal/utils/config"
)

const (
	defaultTelegramURL = "https://api.telegram.org"
	maxMessageRunes    = 4096
)

// Telegram sends HTML messages to one chat. Delivery is best effort: failures
// are logged and never returned to the caller.
type Telegram struct {
	botToken string
	chatID   string
	enabled  bool
	baseURL  string
	client   *http.Client
}

func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		baseURL:  defaultTelegramURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Telegram) Enabled() bool { return n.enabled }

func (n *Telegram) Send(ctx context.Context, message string) {
	if !n.enabled {
		log.Printf("📭 Telegram disabled, message dropped (%d chars)", len(message))
		return
	}
	if err := n.sendMessage(ctx, message); err != nil {
		log.Printf("❌ Telegram send failed: %v", err)
	}
}

func (n *Telegram) sendMessage(ctx context.Context, message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)

	data := url.Values{}
	data.Set("chat_id", n.chatID)
	data.Set("text", truncate(message, maxMessageRunes))
	data.Set("parse_mode", "HTML")
	data.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes-1]) + "…"
}
