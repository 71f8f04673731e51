package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// TelegramTransport sends alerts to a Telegram chat via the Bot API.
// Adapted from the engine's original single-purpose notifier into one
// Transport implementation among several.
type TelegramTransport struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	baseURL    string // overridable for testing; defaults to the Telegram API
}

// NewTelegramTransport builds a TelegramTransport. Callers should only
// register it with a Sink when both botToken and chatID are non-empty.
func NewTelegramTransport(botToken, chatID string) *TelegramTransport {
	return &TelegramTransport{
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramTransport) Name() string { return "telegram" }

func (t *TelegramTransport) Send(ctx context.Context, msg string) error {
	endpoint := t.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	}
	vals := url.Values{
		"chat_id":    {t.chatID},
		"text":       {msg},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.URL.RawQuery = vals.Encode()

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}
