package agent

import (
	"strings"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/domain"
)

// DefaultWindow is the number of messages a session keeps when no window
// is configured.
const DefaultWindow = 200

// ConversationStore holds the ordered message window per session key.
type ConversationStore interface {
	// Append adds a message to the end of the session's window.
	Append(key string, msg domain.Message)

	// Snapshot returns a copy of the session's messages in insertion order.
	Snapshot(key string) []domain.Message

	// Clear drops every message and the continuation id of a session.
	Clear(key string)

	// Continuation returns the provider continuation id saved for a session.
	Continuation(key string) string

	// SetContinuation saves the provider continuation id for a session.
	SetContinuation(key, id string)

	// Keys returns every session key with state.
	Keys() []string
}

type conversation struct {
	mu           sync.Mutex
	messages     []domain.Message
	continuation string
}

// MemoryConversationStore is an in-memory ConversationStore. Appends to
// different keys never contend on the same lock.
type MemoryConversationStore struct {
	mu       sync.RWMutex
	sessions map[string]*conversation
	window   int
}

// NewMemoryConversationStore creates a store that keeps at most window
// messages per session. A window of zero or less uses DefaultWindow.
func NewMemoryConversationStore(window int) *MemoryConversationStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryConversationStore{
		sessions: make(map[string]*conversation),
		window:   window,
	}
}

func (s *MemoryConversationStore) get(key string, create bool) *conversation {
	s.mu.RLock()
	c, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.sessions[key]; ok {
		return c
	}
	c = &conversation{}
	s.sessions[key] = c
	return c
}

func (s *MemoryConversationStore) Append(key string, msg domain.Message) {
	c := s.get(key, true)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	if over := len(c.messages) - s.window; over > 0 {
		c.messages = append(c.messages[:0:0], c.messages[over:]...)
	}
}

func (s *MemoryConversationStore) Snapshot(key string) []domain.Message {
	c := s.get(key, false)
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (s *MemoryConversationStore) Clear(key string) {
	c := s.get(key, false)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.continuation = ""
}

func (s *MemoryConversationStore) Continuation(key string) string {
	c := s.get(key, false)
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.continuation
}

func (s *MemoryConversationStore) SetContinuation(key, id string) {
	c := s.get(key, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.continuation = id
}

func (s *MemoryConversationStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	return keys
}

// RenderContext serializes a snapshot into the prompt sent on follow-up
// turns, one "TYPE: text" line per message.
func RenderContext(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return "No conversation context available."
	}
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(m.Kind.Label())
		sb.WriteString(": ")
		sb.WriteString(m.Text)
	}
	return sb.String()
}

// LastText returns the text projection of the most recent message.
func LastText(msgs []domain.Message) (string, bool) {
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[len(msgs)-1].Text, true
}
