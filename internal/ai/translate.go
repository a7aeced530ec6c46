// Package ai adapts OpenAI-compatible chat-completion endpoints to the two
// AI boundaries of the offline store: chapter translation and chat replies.
package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aquilax/truncate"
	"github.com/sashabaranov/go-openai"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/models"
)

const DefaultModel = "gpt-4o-mini"

// SourceLanguage is the language cached translations are written in; a
// request for it is answered without calling the model.
const SourceLanguage = "en"

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"de": "German",
	"fr": "French",
	"pt": "Portuguese",
	"zh": "Chinese (Simplified)",
	"it": "Italian",
}

// LanguageName returns the display name of a language code, or the code.
func LanguageName(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}

type TranslationRequest struct {
	Verses         []models.ChapterVerse
	TargetLanguage string
	Book           string
	Chapter        int
}

type TranslatedVerse struct {
	Verse        int    `json:"verse"`
	Text         string `json:"text"`
	OriginalText string `json:"originalText,omitempty"`
}

// TranslationResult always carries verses. WasTranslated is false when the
// verses are the untouched input, whether because no translation was
// needed or because the model call failed.
type TranslationResult struct {
	Verses        []TranslatedVerse
	WasTranslated bool
}

// Translator never fails: on any error it falls back to the source verses.
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) TranslationResult
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAITranslator translates a chapter in one completion request.
type OpenAITranslator struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

func NewOpenAITranslator(cfg Config, logger logging.Logger) *OpenAITranslator {
	return &OpenAITranslator{
		client: newClient(cfg),
		model:  modelOrDefault(cfg.Model),
		logger: logger.With("module", "ai.translate"),
	}
}

func newClient(cfg Config) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}

func modelOrDefault(m string) string {
	if m == "" {
		return DefaultModel
	}
	return m
}

func (t *OpenAITranslator) Translate(ctx context.Context, req TranslationRequest) TranslationResult {
	if req.TargetLanguage == SourceLanguage || len(req.Verses) == 0 {
		return Untranslated(req.Verses)
	}

	lines := make([]string, 0, len(req.Verses))
	for _, v := range req.Verses {
		lines = append(lines, fmt.Sprintf("[%d] %s", v.Verse, v.Text))
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: translationPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: strings.Join(lines, "\n")},
		},
		Temperature: 0.3,
		MaxTokens:   4000,
	})
	if err != nil {
		t.logger.Warn(ctx, "translation failed, returning source verses",
			"book", req.Book, "chapter", req.Chapter, "lang", req.TargetLanguage, "error", err)
		return Untranslated(req.Verses)
	}
	if len(resp.Choices) == 0 {
		t.logger.Warn(ctx, "translation returned no choices", "book", req.Book, "chapter", req.Chapter)
		return Untranslated(req.Verses)
	}

	content := resp.Choices[0].Message.Content
	verses := parseTranslation(content, req.Verses)
	if len(verses) == 0 {
		t.logger.Warn(ctx, "translation output not parseable",
			"output", truncate.Truncate(content, 64, "...", truncate.PositionMiddle))
		return Untranslated(req.Verses)
	}

	t.logger.Debug(ctx, "chapter translated",
		"book", req.Book, "chapter", req.Chapter, "lang", req.TargetLanguage, "verses", len(verses))
	return TranslationResult{Verses: verses, WasTranslated: true}
}

func translationPrompt(req TranslationRequest) string {
	return fmt.Sprintf(`You are a Bible translation assistant. Translate the following Bible verses from %s chapter %d into %s.

Important guidelines:
- Maintain the sacred and reverent tone of scripture
- Keep verse numbers in brackets [X] at the start of each verse
- Preserve the meaning and theological accuracy
- Do not add commentary or explanations
- Return ONLY the translated verses, one per line`, req.Book, req.Chapter, LanguageName(req.TargetLanguage))
}

var verseLine = regexp.MustCompile(`^\[(\d+)\]\s*(.+)$`)

func parseTranslation(content string, source []models.ChapterVerse) []TranslatedVerse {
	originals := make(map[int]string, len(source))
	for _, v := range source {
		originals[v.Verse] = v.Text
	}

	var out []TranslatedVerse
	for _, line := range strings.Split(content, "\n") {
		m := verseLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, TranslatedVerse{Verse: n, Text: strings.TrimSpace(m[2]), OriginalText: originals[n]})
	}
	return out
}

// Untranslated wraps source verses as a fallback result.
func Untranslated(verses []models.ChapterVerse) TranslationResult {
	out := make([]TranslatedVerse, 0, len(verses))
	for _, v := range verses {
		out = append(out, TranslatedVerse{Verse: v.Verse, Text: v.Text})
	}
	return TranslationResult{Verses: out}
}

// NopTranslator is used when no model endpoint is configured.
type NopTranslator struct{}

func (NopTranslator) Translate(_ context.Context, req TranslationRequest) TranslationResult {
	return Untranslated(req.Verses)
}
