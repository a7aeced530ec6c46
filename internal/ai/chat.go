package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/models"
)

var ErrEmptyReply = errors.New("model returned no reply")

// Reply is an assistant answer plus the metadata stored with it.
type Reply struct {
	Content    string
	Model      string
	TokensUsed int
}

// Responder produces the next assistant message of a conversation.
type Responder interface {
	Reply(ctx context.Context, history []models.Message, lang string) (Reply, error)
}

type OpenAIResponder struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

func NewOpenAIResponder(cfg Config, logger logging.Logger) *OpenAIResponder {
	return &OpenAIResponder{
		client: newClient(cfg),
		model:  modelOrDefault(cfg.Model),
		logger: logger.With("module", "ai.chat"),
	}
}

func (r *OpenAIResponder) Reply(ctx context.Context, history []models.Message, lang string) (Reply, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: chatPrompt(lang)})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    msgs,
		Temperature: 0.7,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Reply{}, ErrEmptyReply
	}

	r.logger.Debug(ctx, "chat reply", "model", resp.Model, "tokens", resp.Usage.TotalTokens)

	model := resp.Model
	if model == "" {
		model = r.model
	}
	return Reply{
		Content:    resp.Choices[0].Message.Content,
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func chatPrompt(lang string) string {
	p := `You are ScriptureForge AI, a warm and knowledgeable Bible study companion.
Quote verses accurately with their reference (Book Chapter:Verse), explain context and
historical background, and suggest two or three related passages for further study.
Present mainstream Christian interpretations and acknowledge where traditions differ.`
	if lang != "" && lang != SourceLanguage {
		p += fmt.Sprintf("\n\nRespond entirely in %s.", LanguageName(lang))
	}
	return p
}
