package history

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	data    map[string][]byte
	failSet bool
	failGet bool
	writes  int
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string][]byte{}}
}

func (s *memStorage) Get(_ context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errors.New("quota exceeded")
	}
	return s.data[key], nil
}

func (s *memStorage) Set(_ context.Context, key string, value []byte) error {
	if s.failSet {
		return errors.New("quota exceeded")
	}
	s.writes++
	s.data[key] = append([]byte(nil), value...)
	return nil
}

type session struct {
	uid string
}

func (s session) IsAuthenticated() bool { return s.uid != "" }
func (s session) UserID() string        { return s.uid }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newManager(t *testing.T, st *memStorage) *Manager {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	m, err := NewManager(context.Background(), st, session{}, WithClock(clock.Now))
	require.NoError(t, err)
	return m
}

func strPtr(s string) *string { return &s }

func TestTitleDerivation_Short(t *testing.T) {
	m := newManager(t, newMemStorage())
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)
	require.Nil(t, c.Title)

	_, err = m.AddMessage(ctx, c.ID, models.RoleUser, "Tell me about grace", nil)
	require.NoError(t, err)

	got := m.LoadConversation(c.ID)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Tell me about grace", *got.Title)
	assert.Equal(t, "Tell me about grace", got.Preview)
}

func TestTitleDerivation_LongIsTruncatedAndSticky(t *testing.T) {
	m := newManager(t, newMemStorage())
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)

	long := strings.Repeat("abcdefghij", 8)
	require.Len(t, long, 80)
	_, err = m.AddMessage(ctx, c.ID, models.RoleUser, long, nil)
	require.NoError(t, err)

	want := long[:50] + "..."
	got := m.LoadConversation(c.ID)
	require.Equal(t, want, *got.Title)

	_, err = m.AddMessage(ctx, c.ID, models.RoleUser, "a second question", nil)
	require.NoError(t, err)

	got = m.LoadConversation(c.ID)
	assert.Equal(t, want, *got.Title)
	assert.Equal(t, "a second question", got.Preview)
}

func TestTitleDerivation_AssistantDoesNotSetTitle(t *testing.T) {
	m := newManager(t, newMemStorage())
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)

	_, err = m.AddMessage(ctx, c.ID, models.RoleAssistant, "Hello! How can I help?", nil)
	require.NoError(t, err)

	got := m.LoadConversation(c.ID)
	assert.Nil(t, got.Title)
	assert.Empty(t, got.Preview)
}

func TestTitleDerivation_ExplicitTitleKept_PlaceholderReplaced(t *testing.T) {
	m := newManager(t, newMemStorage())
	ctx := context.Background()

	named, err := m.CreateConversation(ctx, strPtr("Romans study"))
	require.NoError(t, err)
	placeholder, err := m.CreateConversation(ctx, strPtr(PlaceholderTitle))
	require.NoError(t, err)

	_, err = m.AddMessage(ctx, named.ID, models.RoleUser, "What is justification?", nil)
	require.NoError(t, err)
	_, err = m.AddMessage(ctx, placeholder.ID, models.RoleUser, "What is sanctification?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Romans study", *m.LoadConversation(named.ID).Title)
	assert.Equal(t, "What is sanctification?", *m.LoadConversation(placeholder.ID).Title)
}

func TestDeriveTitle_CountsCharacters(t *testing.T) {
	s := strings.Repeat("é", 50)
	require.Equal(t, s, DeriveTitle(s))
	require.Equal(t, s+"...", DeriveTitle(s+"x"))
}

func TestAddMessage_UnknownConversationIsSoftNil(t *testing.T) {
	st := newMemStorage()
	m := newManager(t, st)

	msg, err := m.AddMessage(context.Background(), "nope", models.RoleUser, "hi", nil)
	require.NoError(t, err)
	require.Nil(t, msg)
	require.Zero(t, st.writes)
	require.Empty(t, m.Conversations(true))
}

func TestAddMessage_InvalidRole(t *testing.T) {
	m := newManager(t, newMemStorage())
	c, err := m.CreateConversation(context.Background(), nil)
	require.NoError(t, err)

	_, err = m.AddMessage(context.Background(), c.ID, models.Role("system"), "x", nil)
	require.ErrorIs(t, err, common.ErrInvalidRole)
}

func TestAddMessage_AppendOrderAndUpdatedAt(t *testing.T) {
	m := newManager(t, newMemStorage())
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)

	md := &models.MessageMetadata{VerseReferences: []string{"Eph 2:8"}, Model: "gpt-4o-mini", TokensUsed: 42}
	first, err := m.AddMessage(ctx, c.ID, models.RoleUser, "one", nil)
	require.NoError(t, err)
	second, err := m.AddMessage(ctx, c.ID, models.RoleAssistant, "two", md)
	require.NoError(t, err)
	md.VerseReferences[0] = "mutated"

	got := m.LoadConversation(c.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, first.ID, got.Messages[0].ID)
	assert.Equal(t, second.ID, got.Messages[1].ID)
	assert.Equal(t, "Eph 2:8", got.Messages[1].Metadata.VerseReferences[0])
	assert.True(t, got.UpdatedAt.Equal(second.CreatedAt))
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestDeleteConversation_Cascades(t *testing.T) {
	st := newMemStorage()
	m := newManager(t, st)
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)
	_, err = m.AddMessage(ctx, c.ID, models.RoleUser, "hello", nil)
	require.NoError(t, err)
	require.NotNil(t, m.Current())

	require.NoError(t, m.DeleteConversation(ctx, c.ID))

	assert.Nil(t, m.LoadConversation(c.ID))
	assert.Nil(t, m.Current())

	var persisted []models.Conversation
	require.NoError(t, json.Unmarshal(st.data[DefaultKey], &persisted))
	require.Empty(t, persisted)

	reloaded := newManager(t, st)
	assert.Nil(t, reloaded.LoadConversation(c.ID))

	require.NoError(t, m.DeleteConversation(ctx, c.ID))
}

func TestPersistence_ReloadRestoresHistory(t *testing.T) {
	st := newMemStorage()
	m := newManager(t, st)
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)
	_, err = m.AddMessage(ctx, c.ID, models.RoleUser, "What does agape mean?", nil)
	require.NoError(t, err)

	reloaded := newManager(t, st)
	got := reloaded.LoadConversation(c.ID)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "What does agape mean?", *got.Title)
}

func TestUpdateConversation_ArchiveHidesFromDefaultListing(t *testing.T) {
	m := newManager(t, newMemStorage())
	ctx := context.Background()

	a, err := m.CreateConversation(ctx, strPtr("a"))
	require.NoError(t, err)
	b, err := m.CreateConversation(ctx, strPtr("b"))
	require.NoError(t, err)

	archived := true
	require.NoError(t, m.UpdateConversation(ctx, a.ID, Patch{IsArchived: &archived}))

	list := m.Conversations(false)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	all := m.Conversations(true)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID, "archiving refreshes updatedAt")

	got := m.LoadConversation(a.ID)
	require.NotNil(t, got, "archived conversations stay readable")
	assert.True(t, got.IsArchived)
}

func TestUpdateConversation_RenameAndUnknownID(t *testing.T) {
	st := newMemStorage()
	m := newManager(t, st)
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)
	before := m.LoadConversation(c.ID).UpdatedAt

	require.NoError(t, m.UpdateConversation(ctx, c.ID, Patch{Title: strPtr("Psalms")}))
	got := m.LoadConversation(c.ID)
	assert.Equal(t, "Psalms", *got.Title)
	assert.True(t, got.UpdatedAt.After(before))

	writes := st.writes
	require.NoError(t, m.UpdateConversation(ctx, "nope", Patch{Title: strPtr("x")}))
	assert.Equal(t, writes, st.writes)
}

func TestConversations_SortedByUpdatedAt(t *testing.T) {
	m := newManager(t, newMemStorage())
	ctx := context.Background()

	old, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)
	_, err = m.CreateConversation(ctx, nil)
	require.NoError(t, err)

	_, err = m.AddMessage(ctx, old.ID, models.RoleUser, "bump", nil)
	require.NoError(t, err)

	list := m.Conversations(false)
	require.Len(t, list, 2)
	assert.Equal(t, old.ID, list[0].ID)
	assert.Equal(t, 1, list[0].MessageCount)
}

func TestFailedWriteLeavesStateUnchanged(t *testing.T) {
	st := newMemStorage()
	m := newManager(t, st)
	ctx := context.Background()

	c, err := m.CreateConversation(ctx, nil)
	require.NoError(t, err)

	st.failSet = true
	_, err = m.AddMessage(ctx, c.ID, models.RoleUser, "lost", nil)
	require.ErrorIs(t, err, common.ErrStorageUnavailable)

	got := m.LoadConversation(c.ID)
	assert.Empty(t, got.Messages)
	assert.Nil(t, got.Title)

	_, err = m.CreateConversation(ctx, nil)
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Len(t, m.Conversations(true), 1)

	require.ErrorIs(t, m.DeleteConversation(ctx, c.ID), common.ErrStorageUnavailable)
	assert.NotNil(t, m.LoadConversation(c.ID))
}

func TestSwitchSession_ScopesByUser(t *testing.T) {
	st := newMemStorage()
	m := newManager(t, st)
	ctx := context.Background()

	anon, err := m.CreateConversation(ctx, strPtr("anonymous"))
	require.NoError(t, err)

	require.NoError(t, m.SwitchSession(ctx, session{uid: "u1"}))
	assert.Empty(t, m.Conversations(true))
	assert.Nil(t, m.Current())

	mine, err := m.CreateConversation(ctx, strPtr("mine"))
	require.NoError(t, err)
	assert.Contains(t, st.data, DefaultKey+":u1")

	require.NoError(t, m.SwitchSession(ctx, session{}))
	assert.NotNil(t, m.LoadConversation(anon.ID))
	assert.Nil(t, m.LoadConversation(mine.ID))
}

func TestLoad_MissingOrCorruptIsEmpty(t *testing.T) {
	st := newMemStorage()
	st.data[DefaultKey] = []byte("{not json")

	m := newManager(t, st)
	assert.Empty(t, m.Conversations(true))
}

func TestLoad_StorageFailure(t *testing.T) {
	st := newMemStorage()
	st.failGet = true

	_, err := NewManager(context.Background(), st, session{})
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestGenerateID(t *testing.T) {
	now := time.UnixMilli(1714550400000)
	a, b := generateID(now), generateID(now)
	assert.True(t, strings.HasPrefix(a, "1714550400000-"))
	assert.Len(t, a, len("1714550400000-")+9)
	assert.NotEqual(t, a, b)
}
