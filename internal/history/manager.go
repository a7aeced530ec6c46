// Package history keeps chat conversations for a single device.
//
// The whole conversation list lives in memory and is written back to
// storage as one JSON blob after every mutation. Each mutation is applied to
// a copy and swapped in only once the write succeeded, so a storage failure
// leaves the in-memory state untouched.
//
// Two processes sharing one storage key race: the blob is replaced, never
// merged, and the last writer wins.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aquilax/truncate"
	"github.com/google/uuid"
	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/models"
)

const (
	DefaultKey = "chat-history"

	// PlaceholderTitle is shown for untitled conversations and is replaced by
	// the first user message like a missing title.
	PlaceholderTitle = "New Conversation"

	titleLimit   = 50
	previewLimit = 100
	ellipsis     = "..."
)

// Storage persists the serialized conversation list.
type Storage interface {
	// Get returns nil when nothing is stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Session is the authentication signal the manager scopes history by.
type Session interface {
	IsAuthenticated() bool
	UserID() string
}

// Patch is a partial conversation update; nil fields are left alone.
type Patch struct {
	Title      *string
	IsArchived *bool
}

type Manager struct {
	mu sync.Mutex

	storage Storage
	baseKey string
	key     string

	conversations []*models.Conversation
	currentID     string

	logger logging.Logger
	now    func() time.Time
	newID  func(time.Time) string
}

type Option func(*Manager)

func WithKey(key string) Option {
	return func(m *Manager) { m.baseKey = key }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager loads the history of session from storage.
func NewManager(ctx context.Context, storage Storage, session Session, opts ...Option) (*Manager, error) {
	m := &Manager{
		storage: storage,
		baseKey: DefaultKey,
		logger:  logging.Nop(),
		now:     time.Now,
		newID:   generateID,
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With("module", "history")

	if err := m.SwitchSession(ctx, session); err != nil {
		return nil, err
	}
	return m, nil
}

// StorageKey is the key history of session is kept under.
func StorageKey(base string, session Session) string {
	if session != nil && session.IsAuthenticated() && session.UserID() != "" {
		return base + ":" + session.UserID()
	}
	return base
}

// SwitchSession drops the in-memory state and loads the history stored for
// session. Missing or unreadable data yields an empty history.
func (m *Manager) SwitchSession(ctx context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := StorageKey(m.baseKey, session)
	raw, err := m.storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load history: %w: %w", common.ErrStorageUnavailable, err)
	}

	var list []*models.Conversation
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil {
			m.logger.Warn(ctx, "discarding unreadable history", "key", key, "error", err)
			list = nil
		}
	}

	m.key = key
	m.conversations = list
	m.currentID = ""
	m.logger.Debug(ctx, "history loaded", "key", key, "conversations", len(list))
	return nil
}

func (m *Manager) persist(ctx context.Context, list []*models.Conversation) error {
	if list == nil {
		list = []*models.Conversation{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := m.storage.Set(ctx, m.key, raw); err != nil {
		return fmt.Errorf("save history: %w: %w", common.ErrStorageUnavailable, err)
	}
	return nil
}

func (m *Manager) indexOf(id string) int {
	for i, c := range m.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// replaced returns a copy of the list with position i swapped for c.
func (m *Manager) replaced(i int, c *models.Conversation) []*models.Conversation {
	next := make([]*models.Conversation, len(m.conversations))
	copy(next, m.conversations)
	next[i] = c
	return next
}

// CreateConversation adds an empty conversation at the head of the list and
// makes it current.
func (m *Manager) CreateConversation(ctx context.Context, title *string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	c := &models.Conversation{
		ID:        m.newID(now),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.Message{},
	}
	if title != nil {
		t := *title
		c.Title = &t
	}

	next := make([]*models.Conversation, 0, len(m.conversations)+1)
	next = append(next, c)
	next = append(next, m.conversations...)
	if err := m.persist(ctx, next); err != nil {
		return nil, err
	}

	m.conversations = next
	m.currentID = c.ID
	m.logger.Debug(ctx, "conversation created", "id", c.ID)
	return c.Clone(), nil
}

// LoadConversation returns a copy of the conversation and makes it current,
// or nil when the id is unknown.
func (m *Manager) LoadConversation(id string) *models.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil
	}
	m.currentID = id
	return m.conversations[i].Clone()
}

// AddMessage appends a message. It returns nil, nil when the conversation
// does not exist.
func (m *Manager) AddMessage(ctx context.Context, conversationID string, role models.Role, content string, md *models.MessageMetadata) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidRole, role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(conversationID)
	if i < 0 {
		m.logger.Debug(ctx, "message for unknown conversation dropped", "conversation", conversationID)
		return nil, nil
	}

	now := m.now().UTC()
	msg := models.Message{
		ID:        m.newID(now),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	if md != nil {
		cp := *md
		cp.VerseReferences = append([]string(nil), md.VerseReferences...)
		msg.Metadata = &cp
	}

	c := m.conversations[i].Clone()
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = now
	if role == models.RoleUser {
		c.Preview = prefix(content, previewLimit)
		if c.Title == nil || *c.Title == PlaceholderTitle {
			t := DeriveTitle(content)
			c.Title = &t
		}
	}

	if err := m.persist(ctx, m.replaced(i, c)); err != nil {
		return nil, err
	}
	m.conversations[i] = c

	m.logger.Debug(ctx, "message added", "conversation", conversationID, "role", role,
		"content", truncate.Truncate(content, 64, ellipsis, truncate.PositionMiddle))
	out := msg
	return &out, nil
}

// DeriveTitle is the first 50 characters of content, with an ellipsis when
// content is longer.
func DeriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	return prefix(content, titleLimit) + ellipsis
}

func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var b strings.Builder
	for i, r := range []rune(s) {
		if i == n {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UpdateConversation applies p. Unknown ids are ignored.
func (m *Manager) UpdateConversation(ctx context.Context, id string, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil
	}

	c := m.conversations[i].Clone()
	if p.Title != nil {
		t := *p.Title
		c.Title = &t
	}
	if p.IsArchived != nil {
		c.IsArchived = *p.IsArchived
	}
	c.UpdatedAt = m.now().UTC()

	if err := m.persist(ctx, m.replaced(i, c)); err != nil {
		return err
	}
	m.conversations[i] = c
	return nil
}

// DeleteConversation removes the conversation and its messages. Unknown ids
// are ignored.
func (m *Manager) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil
	}

	next := make([]*models.Conversation, 0, len(m.conversations)-1)
	next = append(next, m.conversations[:i]...)
	next = append(next, m.conversations[i+1:]...)
	if err := m.persist(ctx, next); err != nil {
		return err
	}

	m.conversations = next
	if m.currentID == id {
		m.currentID = ""
	}
	m.logger.Debug(ctx, "conversation deleted", "id", id)
	return nil
}

// Conversations lists summaries, most recently updated first. Archived
// conversations are included only on request.
func (m *Manager) Conversations(includeArchived bool) []models.ConversationSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ConversationSummary, 0, len(m.conversations))
	for _, c := range m.conversations {
		if c.IsArchived && !includeArchived {
			continue
		}
		out = append(out, c.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Current returns a copy of the current conversation, or nil.
func (m *Manager) Current() *models.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(m.currentID); i >= 0 {
		return m.conversations[i].Clone()
	}
	return nil
}

func (m *Manager) ClearCurrent() {
	m.mu.Lock()
	m.currentID = ""
	m.mu.Unlock()
}

// generateID is the creation time in milliseconds plus a random suffix.
func generateID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
