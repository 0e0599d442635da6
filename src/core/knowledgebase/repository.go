package knowledgebase

import (
	"context"
	"time"
)

// SessionStore defines the interface for storing chat sessions.
// Expiry and capacity are not enforced by implementations.
type SessionStore interface {
	// Create starts an empty session with a fresh id
	Create(ctx context.Context) (*ChatSession, error)
	// Get returns the session or nil when the id is unknown
	Get(ctx context.Context, sessionID string) (*ChatSession, error)
	// Delete removes the session and reports whether it existed
	Delete(ctx context.Context, sessionID string) (bool, error)
	// Save replaces the stored session with s
	Save(ctx context.Context, s *ChatSession) error
}

// ChatSession is a conversation held by a SessionStore
type ChatSession struct {
	SessionID      string        `json:"sessionId"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	Messages       []ChatMessage `json:"messages"`
}

// ChatMessage represents a message in chat history
type ChatMessage struct {
	SessionID string           `json:"sessionId"`
	MessageID string           `json:"messageId"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Sources   []DocumentSource `json:"sources,omitempty"`
}

// NewChatSession returns an empty session created at now.
func NewChatSession(id string, now time.Time) *ChatSession {
	return &ChatSession{
		SessionID:      id,
		CreatedAt:      now,
		LastActivityAt: now,
		Messages:       []ChatMessage{},
	}
}

// IsExpired reports whether the session has been inactive for longer than window.
func (s *ChatSession) IsExpired(now time.Time, window time.Duration) bool {
	return now.Sub(s.LastActivityAt) > window
}

// AtCapacity reports whether the session holds limit messages or more.
func (s *ChatSession) AtCapacity(limit int) bool {
	return len(s.Messages) >= limit
}

// Append adds a message and bumps the activity time.
func (s *ChatSession) Append(msg ChatMessage) {
	msg.SessionID = s.SessionID
	s.Messages = append(s.Messages, msg)
	s.LastActivityAt = msg.Timestamp
}

// CountRole returns the number of messages with the given role.
func (s *ChatSession) CountRole(role Role) int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so the caller can mutate it freely.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		if m.Sources != nil {
			m.Sources = append([]DocumentSource(nil), m.Sources...)
		}
		out.Messages[i] = m
	}
	return &out
}
