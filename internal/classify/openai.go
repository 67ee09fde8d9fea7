// ABOUTME: OpenAI chat-completions client used to select messages matching the criteria
// ABOUTME: Sends one batch per cycle and degrades malformed responses to an empty selection

package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Azhdankov/JobSearcher/internal/store"
)

const defaultAPIBase = "https://api.openai.com"

// Classifier selects the subset of a batch that matches the configured
// criteria. Implementations must return an empty selection rather than
// fail the cycle when the backend misbehaves.
type Classifier interface {
	Select(ctx context.Context, items []*store.Message) ([]store.Key, error)
}

// OpenAIClassifier calls the chat-completions API once per batch and
// parses the strict-JSON selection out of the reply.
type OpenAIClassifier struct {
	apiKey   string
	model    string
	criteria string
	apiBase  string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures an OpenAIClassifier.
type Option func(*OpenAIClassifier)

// WithAPIBase overrides the API base URL. Used in tests.
func WithAPIBase(base string) Option {
	return func(c *OpenAIClassifier) { c.apiBase = base }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *OpenAIClassifier) { c.client.Timeout = d }
}

// NewOpenAIClassifier creates a classifier that selects messages against
// the given criteria text using the given model.
func NewOpenAIClassifier(apiKey, model, criteria string, opts ...Option) *OpenAIClassifier {
	c := &OpenAIClassifier{
		apiKey:   apiKey,
		model:    model,
		criteria: criteria,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   slog.Default().With("component", "classify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// payloadItem is the compact view of a message sent to the model.
type payloadItem struct {
	ID          int64  `json:"id"`
	ChannelName string `json:"channel_name"`
	RawText     string `json:"raw_text"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// selection is the JSON structure the model is instructed to return.
type selection struct {
	Selected []struct {
		ID          int64  `json:"id"`
		ChannelName string `json:"channel_name"`
	} `json:"selected"`
}

// Select sends the whole batch to the model and returns the keys of the
// messages it picked. Transport failures and malformed replies return an
// empty selection together with the error; callers log and move on.
func (c *OpenAIClassifier) Select(ctx context.Context, items []*store.Message) ([]store.Key, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload := make([]payloadItem, 0, len(items))
	for _, it := range items {
		payload = append(payload, payloadItem{
			ID:          it.ID,
			ChannelName: it.ChannelName,
			RawText:     it.Text,
		})
	}

	itemsJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}

	systemPrompt := fmt.Sprintf(
		"You select messages from a feed. You are given a JSON array of messages with fields id, channel_name, raw_text.\n"+
			"Selection criteria: %s\n"+
			"Analyze the messages and return JSON strictly in the form {\"selected\":[{\"id\":number,\"channel_name\":string}]}.\n"+
			"Return nothing except valid JSON.",
		c.criteria,
	)

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Messages:\n" + string(itemsJSON)},
		},
		Temperature: 0.2,
	}
	reqBody.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling classifier: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding classifier response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("classifier response has no choices")
	}

	var sel selection
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &sel); err != nil {
		// The model went off-script; treat it as "nothing matched"
		return nil, fmt.Errorf("parsing selection JSON: %w", err)
	}

	keys := make([]store.Key, 0, len(sel.Selected))
	for _, s := range sel.Selected {
		if s.ChannelName == "" {
			continue
		}
		keys = append(keys, store.Key{ID: s.ID, ChannelName: s.ChannelName})
	}

	c.logger.Debug("classification done", "batch", len(items), "selected", len(keys))
	return keys, nil
}

// Ensure OpenAIClassifier implements Classifier interface
var _ Classifier = (*OpenAIClassifier)(nil)
