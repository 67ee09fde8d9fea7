// Package notify delivers selection results to the operator's Telegram
// chat, one message per selected record. Bodies are composed as Markdown
// and rendered down to the HTML subset Telegram accepts, which also
// neutralizes markup characters inside the quoted message text.
package notify
