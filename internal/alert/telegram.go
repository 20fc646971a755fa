package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TelegramChannel sends events as plain-text messages via the Bot API.
// Plain text rather than Markdown: execution lines carry "=" and signed
// PnL values that Telegram's Markdown parser would reject or mangle.
type TelegramChannel struct {
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegramChannel(botToken, chatID string) *TelegramChannel {
	return &TelegramChannel{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (t *TelegramChannel) Name() string {
	return "telegram"
}

func (t *TelegramChannel) Notify(ctx context.Context, event Event) error {
	if t.botToken == "" || t.chatID == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", event.Severity, event.Title)
	if event.Message != "" {
		b.WriteString(event.Message)
		b.WriteByte('\n')
	}
	for _, line := range event.sortedFields() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, line := range event.executionLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	payload := map[string]interface{}{
		"chat_id": t.chatID,
		"text":    strings.TrimRight(b.String(), "\n"),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}
	return nil
}
