package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/models"
	"github.com/scriptureforge/offline/internal/ratelimit"
)

type cannedResponder struct {
	calls    int
	lastLang string
	lastLen  int
	err      error
}

func (r *cannedResponder) Reply(_ context.Context, history []models.Message, lang string) (ai.Reply, error) {
	r.calls++
	r.lastLang = lang
	r.lastLen = len(history)
	if r.err != nil {
		return ai.Reply{}, r.err
	}
	return ai.Reply{Content: "Grace is unmerited favour.", Model: "test-model", TokensUsed: 12}, nil
}

func TestChats_SayStartsConversationAndDerivesTitle(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, "")

	require.NoError(t, app.Say(ctx, []string{"Tell", "me", "about", "grace"}))

	cur := app.history.Current()
	require.NotNil(t, cur)
	require.NotNil(t, cur.Title)
	assert.Equal(t, "Tell me about grace", *cur.Title)

	require.NoError(t, app.Chats(ctx, nil))
	assert.Contains(t, out.String(), cur.ID+"  Tell me about grace (1 messages)")

	assert.ErrorIs(t, app.Say(ctx, nil), errEmptyMessage)
}

func TestChats_AskWithoutModel(t *testing.T) {
	app, _ := newTestApp(t, "")
	assert.ErrorIs(t, app.Ask(context.Background(), []string{"hi"}), errAIDisabled)
	assert.Nil(t, app.history.Current())
}

func TestChats_AskStoresReplyWithMetadata(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, "")
	r := &cannedResponder{}
	app.responder = r
	require.NoError(t, app.Language(ctx, []string{"ES"}))

	require.NoError(t, app.Ask(ctx, []string{"What", "is", "grace?"}))

	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "es", r.lastLang)
	assert.Equal(t, 1, r.lastLen)
	assert.Contains(t, out.String(), "Grace is unmerited favour.")

	cur := app.history.Current()
	require.Len(t, cur.Messages, 2)
	assert.Equal(t, models.RoleUser, cur.Messages[0].Role)
	reply := cur.Messages[1]
	assert.Equal(t, models.RoleAssistant, reply.Role)
	require.NotNil(t, reply.Metadata)
	assert.Equal(t, "test-model", reply.Metadata.Model)
	assert.Equal(t, 12, reply.Metadata.TokensUsed)
	assert.Equal(t, "chat", reply.Metadata.PromptType)
}

func TestChats_AskIsRateLimited(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, "")
	r := &cannedResponder{}
	app.responder = r
	app.limiter = ratelimit.New(ratelimit.Config{Max: 2, Window: time.Minute, MaxEntries: 10})

	require.NoError(t, app.Ask(ctx, []string{"one"}))
	require.NoError(t, app.Ask(ctx, []string{"two"}))
	assert.ErrorIs(t, app.Ask(ctx, []string{"three"}), errRateLimited)

	assert.Equal(t, 2, r.calls)
	assert.Contains(t, out.String(), "Try again after")
	assert.Len(t, app.history.Current().Messages, 4)
}

func TestChats_AskReplyFailureKeepsQuestion(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, "")
	app.responder = &cannedResponder{err: errors.New("upstream down")}

	assert.Error(t, app.Ask(ctx, []string{"hello"}))
	cur := app.history.Current()
	require.NotNil(t, cur)
	assert.Len(t, cur.Messages, 1)
}

func TestChats_RenameArchiveRemove(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, "")

	require.NoError(t, app.NewChat(ctx, []string{"Psalms", "study"}))
	id := app.history.Current().ID

	require.NoError(t, app.Rename(ctx, []string{id, "Psalm", "23"}))
	require.NoError(t, app.Open(ctx, []string{id}))
	assert.Contains(t, out.String(), "Psalm 23")

	require.NoError(t, app.Archive(ctx, []string{id}))
	assert.Empty(t, app.history.Conversations(false))

	out.Reset()
	require.NoError(t, app.Chats(ctx, []string{"all"}))
	assert.Contains(t, out.String(), "[archived]")

	require.NoError(t, app.RemoveChat(ctx, []string{id}))
	assert.Empty(t, app.history.Conversations(true))
	assert.ErrorIs(t, app.Open(ctx, []string{id}), errNoSuchChat)

	var u errUsage
	assert.ErrorAs(t, app.Rename(ctx, []string{id}), &u)
	assert.ErrorAs(t, app.Archive(ctx, nil), &u)
	assert.ErrorAs(t, app.RemoveChat(ctx, nil), &u)
}

func TestChats_UntitledShowsPlaceholder(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, "")

	require.NoError(t, app.NewChat(ctx, nil))
	require.NoError(t, app.Chats(ctx, nil))
	assert.Contains(t, out.String(), "New Conversation (0 messages)")
}
