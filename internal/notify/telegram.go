// ABOUTME: Telegram Bot API notification sink
// ABOUTME: Delivers one formatted message per call to a fixed target chat

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier is the notification sink boundary: one delivery per call,
// fire-and-forget from the pipeline's point of view.
type Notifier interface {
	Deliver(ctx context.Context, text string) error
}

// TelegramNotifier sends messages to a fixed chat through the Bot API.
type TelegramNotifier struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a TelegramNotifier.
type Option func(*TelegramNotifier)

// WithAPIBase overrides the Telegram API base URL. Used in tests.
func WithAPIBase(base string) Option {
	return func(n *TelegramNotifier) { n.apiBase = base }
}

// NewTelegramNotifier creates a notifier posting to the given chat.
func NewTelegramNotifier(token, chatID string, opts ...Option) *TelegramNotifier {
	n := &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default().With("component", "notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Deliver posts one message to the target chat. Failures are returned to
// the caller; the notifier never retries on its own.
func (n *TelegramNotifier) Deliver(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var sr sendMessageResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return fmt.Errorf("decoding response: %w body=%q", err, string(respBody))
	}
	if !sr.OK {
		return fmt.Errorf("sendMessage failed: %s (code %d)", sr.Description, sr.ErrorCode)
	}

	n.logger.Debug("delivered notification", "chat_id", n.chatID, "chars", len(text))
	return nil
}

// Ensure TelegramNotifier implements Notifier interface
var _ Notifier = (*TelegramNotifier)(nil)
