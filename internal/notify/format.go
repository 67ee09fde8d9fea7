// ABOUTME: Builds the notification body for one selected message
// ABOUTME: Renders Markdown to the HTML subset Telegram accepts, with a deep link when possible

package notify

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/Azhdankov/JobSearcher/internal/store"
)

// tagPattern matches any HTML tag so unsupported ones can be dropped.
var tagPattern = regexp.MustCompile(`</?([a-zA-Z0-9]+)(?:\s[^>]*)?>`)

// allowedTags is the markup subset Telegram's HTML parse mode accepts.
var allowedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"a": true, "code": true, "pre": true, "blockquote": true,
}

// markupEscaper neutralizes HTML in user-supplied text before it meets
// the Markdown renderer. Goldmark replaces raw HTML with an omission
// comment instead of escaping it, and Telegram rejects comments, so the
// escaping must happen up front. The entities survive rendering because
// the renderer resolves and re-escapes them.
var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Format builds the notification text for one selected message: a bold
// channel header, the message body, and a t.me deep link when the
// channel id is known. The result is Telegram-ready HTML.
func Format(msg *store.Message) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "**[%s]**\n\n", markupEscaper.Replace(msg.ChannelName))
	md.WriteString(markupEscaper.Replace(strings.TrimSpace(msg.Text)))

	if msg.ChannelID != 0 && msg.ID != 0 {
		fmt.Fprintf(&md, "\n\n🔗 [Open message](https://t.me/c/%d/%d)", msg.ChannelID, msg.ID)
	}

	return renderHTML(md.String())
}

// renderHTML converts Markdown to HTML and narrows it to Telegram's
// subset. The input must already have raw HTML escaped; see Format.
func renderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	// Block tags become line breaks, emphasis becomes Telegram's short forms
	replacer := strings.NewReplacer(
		"<p>", "", "</p>", "\n",
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<del>", "<s>", "</del>", "</s>",
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"<li>", "• ", "</li>", "\n",
	)
	html := replacer.Replace(buf.String())

	// Drop whatever tags remain outside the supported subset
	html = tagPattern.ReplaceAllStringFunc(html, func(tag string) string {
		name := strings.ToLower(tagPattern.FindStringSubmatch(tag)[1])
		if allowedTags[name] {
			return tag
		}
		return ""
	})

	return strings.TrimSpace(html), nil
}
