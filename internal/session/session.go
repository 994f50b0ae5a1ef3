// Package session keeps per-conversation state in process memory.
package session

import (
	"strings"
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NoHistoryMarker is the summary text for a session with no messages yet.
const NoHistoryMarker = "No prior conversation."

const (
	summaryWindow    = 10
	summaryRuneLimit = 100
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation. The message log is append-only; concurrent
// appends to the same session serialize on the session mutex.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	messages     []Message
	collectionID string
}

func (s *Session) Append(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// Messages returns a copy of the log in append order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear empties the message log. The session itself stays registered.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
}

func (s *Session) SetCollection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collectionID = id
}

func (s *Session) Collection() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectionID
}

// Summary renders the last messages as one line for prompt context: at most
// summaryWindow entries, each truncated to summaryRuneLimit runes, labeled by
// speaker and joined with " | ".
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return NoHistoryMarker
	}

	start := 0
	if len(s.messages) > summaryWindow {
		start = len(s.messages) - summaryWindow
	}

	parts := make([]string, 0, len(s.messages)-start)
	for _, m := range s.messages[start:] {
		label := "Assistant"
		if m.Role == RoleUser {
			label = "User"
		}
		content := m.Content
		if r := []rune(content); len(r) > summaryRuneLimit {
			content = string(r[:summaryRuneLimit])
		}
		parts = append(parts, label+": "+content)
	}

	return strings.Join(parts, " | ")
}
