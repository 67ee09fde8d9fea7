// ABOUTME: Telegram Bot API implementation of the Source interface
// ABOUTME: Long-polls getUpdates and normalizes messages and channel posts to RawEvents

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// supergroup and channel chat ids are the internal id prefixed with -100
const channelIDOffset = -1_000_000_000_000

// BotSource consumes Telegram updates through the Bot API using
// long-polling. One BotSource supports one Connect; create a fresh
// instance to reconnect.
type BotSource struct {
	token       string
	apiBase     string
	pollTimeout time.Duration
	client      *http.Client
	logger      *slog.Logger

	events chan RawEvent
	done   chan struct{}

	mu      sync.Mutex
	err     error
	started bool
	closed  bool
}

// BotOption configures a BotSource.
type BotOption func(*BotSource)

// WithAPIBase overrides the Telegram API base URL. Used in tests.
func WithAPIBase(base string) BotOption {
	return func(s *BotSource) { s.apiBase = base }
}

// WithPollTimeout sets the getUpdates long-poll timeout.
func WithPollTimeout(d time.Duration) BotOption {
	return func(s *BotSource) { s.pollTimeout = d }
}

// NewBotSource creates a Telegram source for the given bot token.
func NewBotSource(token string, opts ...BotOption) *BotSource {
	s := &BotSource{
		token:       token,
		apiBase:     defaultAPIBase,
		pollTimeout: 30 * time.Second,
		logger:      slog.Default().With("component", "source"),
		events:      make(chan RawEvent),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	// The HTTP timeout must outlast the long-poll window
	s.client = &http.Client{Timeout: s.pollTimeout + 10*time.Second}
	return s
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// update mirrors the subset of the Update object we consume.
type update struct {
	UpdateID    int64        `json:"update_id"`
	Message     *chatMessage `json:"message"`
	ChannelPost *chatMessage `json:"channel_post"`
}

type chatMessage struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	Chat      struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Username string `json:"username"`
	} `json:"chat"`
	From *struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	} `json:"from"`
	AuthorSignature string `json:"author_signature"`
}

// Connect verifies the token with getMe and starts the polling loop.
func (s *BotSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("source already connected")
	}
	s.started = true
	s.mu.Unlock()

	ok, err := s.IsAuthorized(ctx)
	if err != nil {
		return fmt.Errorf("verifying credentials: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}

	go s.poll(ctx)
	s.logger.Info("connected to Telegram", "poll_timeout", s.pollTimeout)
	return nil
}

// IsAuthorized calls getMe and reports whether the token is accepted.
func (s *BotSource) IsAuthorized(ctx context.Context) (bool, error) {
	_, err := s.call(ctx, "getMe", nil)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Events returns the stream of inbound events.
func (s *BotSource) Events() <-chan RawEvent {
	return s.events
}

// Err returns the reason the stream ended, nil for a clean stop.
func (s *BotSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the polling loop. Safe to call multiple times.
func (s *BotSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
	return nil
}

// poll runs the getUpdates loop until the context is cancelled, Close is
// called, or the API fails. The failure reason is recorded for Err.
func (s *BotSource) poll(ctx context.Context) {
	defer close(s.events)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		params := url.Values{}
		params.Set("timeout", strconv.Itoa(int(s.pollTimeout.Seconds())))
		params.Set("allowed_updates", `["message","channel_post"]`)
		if offset != 0 {
			params.Set("offset", strconv.FormatInt(offset, 10))
		}

		raw, err := s.call(ctx, "getUpdates", params)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setErr(err)
			return
		}

		var updates []update
		if err := json.Unmarshal(raw, &updates); err != nil {
			s.setErr(fmt.Errorf("decoding updates: %w", err))
			return
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}

			msg := u.ChannelPost
			if msg == nil {
				msg = u.Message
			}
			if msg == nil {
				continue
			}

			select {
			case s.events <- normalize(msg):
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

func (s *BotSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.logger.Error("event stream ended", "error", err)
}

// normalize maps a Bot API message to the RawEvent boundary shape.
// Missing metadata degrades to placeholders rather than failing.
func normalize(msg *chatMessage) RawEvent {
	channelName := msg.Chat.Title
	if channelName == "" {
		channelName = msg.Chat.Username
	}
	if channelName == "" {
		channelName = "unknown"
	}

	var author string
	if msg.From != nil {
		author = msg.From.Username
		if author == "" {
			author = msg.From.FirstName
		}
	}
	if author == "" {
		author = msg.AuthorSignature
	}

	return RawEvent{
		ID:          msg.MessageID,
		ChannelName: channelName,
		ChannelID:   internalChannelID(msg.Chat.ID),
		Timestamp:   time.Unix(msg.Date, 0).UTC(),
		Author:      author,
		Text:        msg.Text,
	}
}

// internalChannelID strips the -100 prefix Telegram puts on channel and
// supergroup chat ids, yielding the id used in t.me/c/ deep links.
// Returns 0 for chats that have no linkable form.
func internalChannelID(chatID int64) int64 {
	if chatID <= channelIDOffset {
		return -(chatID - channelIDOffset)
	}
	return 0
}

// call invokes one Bot API method and returns the raw result payload.
// HTTP 401/403 map to ErrUnauthorized so callers can classify the failure.
func (s *BotSource) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", s.apiBase, s.token, method)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w body=%q", method, err, string(body))
	}
	if !env.OK {
		return nil, fmt.Errorf("%s failed: %s (code %d)", method, env.Description, env.ErrorCode)
	}

	return env.Result, nil
}

// Ensure BotSource implements Source interface
var _ Source = (*BotSource)(nil)
