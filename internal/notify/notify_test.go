package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azhdankov/JobSearcher/internal/store"
)

func selectedMessage() *store.Message {
	return &store.Message{
		ID:          42,
		ChannelName: "jobs",
		ChannelID:   1234567890,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Text:        "Backend engineer wanted, remote",
	}
}

func TestFormat_HeaderBodyAndDeepLink(t *testing.T) {
	text, err := Format(selectedMessage())
	require.NoError(t, err)

	assert.Contains(t, text, "<b>[jobs]</b>")
	assert.Contains(t, text, "Backend engineer wanted, remote")
	assert.Contains(t, text, `https://t.me/c/1234567890/42`)
}

func TestFormat_NoDeepLinkWithoutChannelID(t *testing.T) {
	msg := selectedMessage()
	msg.ChannelID = 0

	text, err := Format(msg)
	require.NoError(t, err)
	assert.NotContains(t, text, "t.me")
}

func TestFormat_EscapesMarkupInBody(t *testing.T) {
	msg := selectedMessage()
	msg.Text = "beware of <script> & ampersands"

	text, err := Format(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "&lt;script&gt;")
	assert.Contains(t, text, "&amp;")
	assert.NotContains(t, text, "<script>")
	// Goldmark replaces unescaped raw HTML with an omission comment,
	// which Telegram's HTML parser rejects outright
	assert.NotContains(t, text, "<!--")
}

func TestFormat_EscapesMarkupInChannelName(t *testing.T) {
	msg := selectedMessage()
	msg.ChannelName = "jobs <b>& more</b>"

	text, err := Format(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "&lt;b&gt;&amp; more&lt;/b&gt;")
	assert.NotContains(t, text, "<!--")
}

func TestFormat_DropsUnsupportedTags(t *testing.T) {
	msg := selectedMessage()
	msg.Text = "# Heading\n\n- item one\n- item two"

	text, err := Format(msg)
	require.NoError(t, err)
	assert.NotContains(t, text, "<h1>")
	assert.NotContains(t, text, "<ul>")
	assert.NotContains(t, text, "<li>")
	assert.Contains(t, text, "• item one")
}

func TestFormat_TrimsBody(t *testing.T) {
	msg := selectedMessage()
	msg.Text = "   padded text   "

	text, err := Format(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "padded text")
}

func TestTelegramNotifier_Deliver(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "9999", WithAPIBase(srv.URL))
	require.NoError(t, n.Deliver(context.Background(), "<b>[jobs]</b>\nhello"))

	assert.Equal(t, "9999", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
	assert.Contains(t, got.Text, "hello")
}

func TestTelegramNotifier_DeliverFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "9999", WithAPIBase(srv.URL))
	err := n.Deliver(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
