package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/kornella/anywaa/pkg/core/types"
)

const fallbackTitle = "Quantum Thread"

// Window returns the most recent n messages of history.
func Window(history []types.Message, n int) []types.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// DeriveTitle names a session after the opening user message, truncated to
// 40 runes.
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackTitle
	}
	runes := []rune(text)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	return string(runes)
}

// NewSession creates an empty conversation thread.
func NewSession(now time.Time) types.ChatSession {
	return types.ChatSession{
		ID:        fmt.Sprintf("quantum_%d", now.UnixMilli()),
		Title:     "Neural Evolution Initiated",
		Messages:  []types.Message{},
		UpdatedAt: now.UnixMilli(),
	}
}

// AppendMessage adds one turn to a session, titling the thread on the first
// user message.
func AppendMessage(session types.ChatSession, msg types.Message) types.ChatSession {
	if len(session.Messages) == 0 && msg.Role == types.RoleUser {
		session.Title = DeriveTitle(msg.Text)
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = msg.Timestamp
	return session
}

// NewMessage builds a message with the timestamp-derived ID scheme used by
// the stored session format.
func NewMessage(role types.Role, text string, now time.Time) types.Message {
	return types.Message{
		ID:        fmt.Sprintf("msg_%s_%d", role, now.UnixMilli()),
		Role:      role,
		Text:      text,
		Timestamp: now.UnixMilli(),
	}
}
