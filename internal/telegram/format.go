package telegram

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// replyTagPattern is the routing convention between Telegram threads
// and website visitors. An admin addresses a visitor by prefixing the
// reply with [ChatID: <id>]; everything after the closing bracket up
// to the end of the line is the reply body.
var replyTagPattern = regexp.MustCompile(`\[ChatID:\s*([^\]]+)\]\s*(.*)`)

// VisitorInfo is the request context shown to admins alongside a
// forwarded message.
type VisitorInfo struct {
	IP        string
	UserAgent string
	PageURL   string
}

// FormatAdminMessage builds the HTML message sent to admin chats:
// header, chat id, visitor context, escaped body and the reply-tag
// instruction footer.
func FormatAdminMessage(chatID, message string, info VisitorInfo) string {
	var b strings.Builder

	b.WriteString("<b>New message from website visitor</b>\n\n")
	fmt.Fprintf(&b, "<b>Chat ID:</b> <code>%s</code>\n", html.EscapeString(chatID))

	if info.IP != "" {
		fmt.Fprintf(&b, "<b>IP:</b> <code>%s</code>\n", html.EscapeString(info.IP))
	}
	if info.UserAgent != "" {
		ua := info.UserAgent
		if len(ua) > 50 {
			ua = ua[:50]
		}
		fmt.Fprintf(&b, "<b>Browser:</b> <code>%s...</code>\n", html.EscapeString(ua))
	}
	if info.PageURL != "" {
		fmt.Fprintf(&b, "<b>Page:</b> <a href=\"%s\">%s</a>\n",
			html.EscapeString(info.PageURL), html.EscapeString(pagePath(info.PageURL)))
	}

	b.WriteString("\n<b>Message:</b>\n")
	b.WriteString(html.EscapeString(message))
	fmt.Fprintf(&b, "\n\n<i>To reply, send: [ChatID: %s] Your response here</i>", html.EscapeString(chatID))

	return b.String()
}

func pagePath(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	return raw
}

// ReplyTag is a parsed admin reply.
type ReplyTag struct {
	ChatID  string
	Message string
}

// ParseReplyTag extracts the first routing tag from an admin reply.
// Both fields are trimmed; a tag with an empty body still reports a
// match so the caller can decide to drop it. The body deliberately
// stops at the first newline.
func ParseReplyTag(text string) (ReplyTag, bool) {
	m := replyTagPattern.FindStringSubmatch(text)
	if m == nil {
		return ReplyTag{}, false
	}
	return ReplyTag{
		ChatID:  strings.TrimSpace(m[1]),
		Message: strings.TrimSpace(m[2]),
	}, true
}
