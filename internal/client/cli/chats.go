package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/history"
	"github.com/scriptureforge/offline/internal/models"
)

var (
	errAIDisabled   = errors.New("AI replies are not configured (set openai_api_key)")
	errNoSuchChat   = errors.New("no such conversation")
	errRateLimited  = errors.New("too many AI requests")
	errEmptyMessage = errors.New("message is empty")
)

func title(c models.ConversationSummary) string {
	if c.Title == nil || *c.Title == "" {
		return history.PlaceholderTitle
	}
	return *c.Title
}

func (a *App) Chats(_ context.Context, args []string) error {
	all := len(args) > 0 && args[0] == "all"
	list := a.history.Conversations(all)
	if len(list) == 0 {
		a.printf("No conversations\n")
		return nil
	}
	for _, c := range list {
		flag := ""
		if c.IsArchived {
			flag = " [archived]"
		}
		a.printf("%s  %s (%d messages)%s\n", c.ID, title(c), c.MessageCount, flag)
		if c.Preview != "" {
			a.printf("    %s\n", c.Preview)
		}
	}
	return nil
}

func (a *App) NewChat(ctx context.Context, args []string) error {
	var t *string
	if len(args) > 0 {
		s := strings.Join(args, " ")
		t = &s
	}
	c, err := a.history.CreateConversation(ctx, t)
	if err != nil {
		return err
	}
	a.printf("Started %s\n", c.ID)
	return nil
}

func (a *App) Open(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("open <id>")
	}
	c := a.history.LoadConversation(args[0])
	if c == nil {
		return errNoSuchChat
	}
	a.printf("%s\n", title(c.Summary()))
	for _, m := range c.Messages {
		a.printf("[%s] %s\n", m.Role, m.Content)
	}
	return nil
}

// appendUserMessage adds text to the current conversation, starting one
// when none is open.
func (a *App) appendUserMessage(ctx context.Context, text string) (*models.Message, error) {
	cur := a.history.Current()
	if cur == nil {
		var err error
		if cur, err = a.history.CreateConversation(ctx, nil); err != nil {
			return nil, err
		}
	}
	msg, err := a.history.AddMessage(ctx, cur.ID, models.RoleUser, text, nil)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errNoSuchChat
	}
	return msg, nil
}

func (a *App) Say(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		return errEmptyMessage
	}
	_, err := a.appendUserMessage(ctx, text)
	return err
}

// Ask records the question and the assistant's answer. Each call counts
// against the caller's rate limit, before the model is contacted.
func (a *App) Ask(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		return errEmptyMessage
	}
	if a.responder == nil {
		return errAIDisabled
	}

	res := a.limiter.CheckAndConsume(a.callerID())
	if !res.Allowed {
		a.printf("Try again after %s\n", res.ResetAt.Local().Format("15:04:05"))
		return errRateLimited
	}

	if _, err := a.appendUserMessage(ctx, text); err != nil {
		return err
	}
	cur := a.history.Current()

	reply, err := a.responder.Reply(ctx, cur.Messages, a.language)
	if err != nil {
		return err
	}

	md := &models.MessageMetadata{PromptType: "chat", Model: reply.Model, TokensUsed: reply.TokensUsed}
	if _, err := a.history.AddMessage(ctx, cur.ID, models.RoleAssistant, reply.Content, md); err != nil {
		return err
	}
	a.printf("%s\n", reply.Content)
	a.logger.Debug(ctx, "assistant replied", "remaining", res.Remaining)
	return nil
}

func (a *App) Rename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage("rename <id> <title>")
	}
	t := strings.Join(args[1:], " ")
	return a.history.UpdateConversation(ctx, args[0], history.Patch{Title: &t})
}

func (a *App) Archive(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("archive <id>")
	}
	archived := true
	return a.history.UpdateConversation(ctx, args[0], history.Patch{IsArchived: &archived})
}

func (a *App) RemoveChat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("rmchat <id>")
	}
	return a.history.DeleteConversation(ctx, args[0])
}

// Language sets the language ask replies are written in.
func (a *App) Language(_ context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Current language: %s\n", ai.LanguageName(a.language))
		return nil
	}
	a.language = strings.ToLower(args[0])
	a.printf("Replies will be in %s\n", ai.LanguageName(a.language))
	return nil
}
