package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MessageMetadata is optional information attached to a chat message.
type MessageMetadata struct {
	VerseReferences []string `json:"verseReferences,omitempty"`
	PromptType      string   `json:"promptType,omitempty"`
	Model           string   `json:"model,omitempty"`
	TokensUsed      int      `json:"tokensUsed,omitempty"`
}

// Message is immutable once appended to its conversation.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"createdAt"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// Conversation owns its messages; they are stored embedded and ordered by
// append order.
type Conversation struct {
	ID         string    `json:"id"`
	Title      *string   `json:"title"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	IsArchived bool      `json:"isArchived"`
	Preview    string    `json:"preview,omitempty"`
	Messages   []Message `json:"messages"`
}

// Clone returns a deep copy so callers can never alias manager state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.Title != nil {
		t := *c.Title
		out.Title = &t
	}
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.clone()
	}
	return &out
}

func (m Message) clone() Message {
	if m.Metadata != nil {
		md := *m.Metadata
		md.VerseReferences = append([]string(nil), m.Metadata.VerseReferences...)
		m.Metadata = &md
	}
	return m
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        *string   `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	IsArchived   bool      `json:"isArchived"`
	Preview      string    `json:"preview,omitempty"`
	MessageCount int       `json:"messageCount"`
}

func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:           c.ID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		IsArchived:   c.IsArchived,
		Preview:      c.Preview,
		MessageCount: len(c.Messages),
	}
	if c.Title != nil {
		t := *c.Title
		s.Title = &t
	}
	return s
}
