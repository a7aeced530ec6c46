// Package services implements the typed operations of the offline store:
// the content cache for Scripture text and downloaded translations, and
// the user annotation store. Both sit on one store.DB.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/dbx"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/models"
	"github.com/scriptureforge/offline/internal/repositories/translations"
	"github.com/scriptureforge/offline/internal/repositories/verses"
	"github.com/scriptureforge/offline/internal/store"
)

// ContentService caches Scripture text for offline reading.
//
// Downloads are two-phase: StoreVerses for the whole translation, then
// MarkTranslationDownloaded. The translation record is the commit marker,
// so an interrupted download reports the translation as not downloaded and
// can simply be restarted.
type ContentService interface {
	// StoreVerses writes the batch in one transaction; on failure none of it is visible.
	StoreVerses(ctx context.Context, batch []models.Verse) error
	// GetOfflineChapter returns nil when the chapter is not cached.
	GetOfflineChapter(ctx context.Context, translation, book string, chapter int) (*models.Chapter, error)
	IsTranslationDownloaded(ctx context.Context, id string) (bool, error)
	MarkTranslationDownloaded(ctx context.Context, id, name, abbreviation string, verseCount int) error
	GetDownloadedTranslations(ctx context.Context) ([]models.Translation, error)
	// DownloadTranslation runs both phases of a download.
	DownloadTranslation(ctx context.Context, meta models.Translation, batch []models.Verse) error
	// TranslateChapter returns the chapter in lang, from cache or via the
	// translator. Only real translations are cached.
	TranslateChapter(ctx context.Context, translation, book string, chapter int, lang string) (ai.TranslationResult, error)
	ClearOfflineData(ctx context.Context) error
	Usage(ctx context.Context) (store.Usage, error)
}

type contentService struct {
	db         *store.DB
	translator ai.Translator
	logger     logging.Logger
	now        func() time.Time
}

func NewContentService(db *store.DB, translator ai.Translator, logger logging.Logger) ContentService {
	if translator == nil {
		translator = ai.NopTranslator{}
	}
	return &contentService{
		db:         db,
		translator: translator,
		logger:     logger.With("module", "content"),
		now:        time.Now,
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageUnavailable, err)
}

func (s *contentService) StoreVerses(ctx context.Context, batch []models.Verse) error {
	if len(batch) == 0 {
		return nil
	}

	err := dbx.WithTx(ctx, s.db.SQL(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := verses.NewSQLiteRepository(tx)
		for _, v := range batch {
			if err := repo.Put(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("store verses", err)
	}

	s.logger.Debug(ctx, "verses stored", "count", len(batch))
	return nil
}

func (s *contentService) GetOfflineChapter(ctx context.Context, translation, book string, chapter int) (*models.Chapter, error) {
	rows, err := verses.NewSQLiteRepository(s.db.SQL()).ByChapter(ctx, translation, book, chapter)
	if err != nil {
		return nil, storageErr("get offline chapter", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Verse < rows[j].Verse })

	ch := &models.Chapter{
		Translation: translation,
		Book:        book,
		Chapter:     chapter,
		Verses:      make([]models.ChapterVerse, 0, len(rows)),
	}
	for _, v := range rows {
		ch.Verses = append(ch.Verses, models.ChapterVerse{Verse: v.Verse, Text: v.Text})
	}
	return ch, nil
}

func (s *contentService) IsTranslationDownloaded(ctx context.Context, id string) (bool, error) {
	t, err := translations.NewSQLiteRepository(s.db.SQL()).Get(ctx, id)
	if err != nil {
		return false, storageErr("is translation downloaded", err)
	}
	return t != nil, nil
}

func (s *contentService) MarkTranslationDownloaded(ctx context.Context, id, name, abbreviation string, verseCount int) error {
	t := models.Translation{
		ID:           id,
		Name:         name,
		Abbreviation: abbreviation,
		DownloadedAt: s.now().UTC(),
		VerseCount:   verseCount,
	}
	if err := translations.NewSQLiteRepository(s.db.SQL()).Put(ctx, t); err != nil {
		return storageErr("mark translation downloaded", err)
	}

	s.logger.Info(ctx, "translation downloaded", "translation", id, "verses", verseCount)
	return nil
}

func (s *contentService) GetDownloadedTranslations(ctx context.Context) ([]models.Translation, error) {
	all, err := translations.NewSQLiteRepository(s.db.SQL()).GetAll(ctx)
	if err != nil {
		return nil, storageErr("get downloaded translations", err)
	}
	return all, nil
}

func (s *contentService) DownloadTranslation(ctx context.Context, meta models.Translation, batch []models.Verse) error {
	owned := make([]models.Verse, len(batch))
	for i, v := range batch {
		v.Translation = meta.ID
		owned[i] = v
	}
	if err := s.StoreVerses(ctx, owned); err != nil {
		return err
	}
	return s.MarkTranslationDownloaded(ctx, meta.ID, meta.Name, meta.Abbreviation, len(batch))
}

// TranslatedID names the cache translation holding AI output for lang.
func TranslatedID(lang, source string) string {
	return "ai:" + lang + ":" + source
}

func (s *contentService) TranslateChapter(ctx context.Context, translation, book string, chapter int, lang string) (ai.TranslationResult, error) {
	src, err := s.GetOfflineChapter(ctx, translation, book, chapter)
	if err != nil {
		return ai.TranslationResult{}, err
	}
	if src == nil {
		return ai.TranslationResult{}, fmt.Errorf("%w: %s %s %d", common.ErrNotCached, translation, book, chapter)
	}
	if lang == ai.SourceLanguage {
		return ai.Untranslated(src.Verses), nil
	}

	targetID := TranslatedID(lang, translation)
	cached, err := s.GetOfflineChapter(ctx, targetID, book, chapter)
	if err != nil {
		return ai.TranslationResult{}, err
	}
	if cached != nil {
		s.logger.Debug(ctx, "translated chapter served from cache", "translation", targetID, "book", book, "chapter", chapter)
		return fromCache(cached, src), nil
	}

	res := s.translator.Translate(ctx, ai.TranslationRequest{
		Verses:         src.Verses,
		TargetLanguage: lang,
		Book:           book,
		Chapter:        chapter,
	})
	if !res.WasTranslated {
		s.logger.Warn(ctx, "chapter returned untranslated", "book", book, "chapter", chapter, "lang", lang)
		return res, nil
	}

	if !coversChapter(res, src) {
		s.logger.Warn(ctx, "partial translation not cached", "book", book, "chapter", chapter, "lang", lang,
			"translated", len(res.Verses), "source", len(src.Verses))
		return res, nil
	}

	batch := make([]models.Verse, 0, len(res.Verses))
	for _, v := range res.Verses {
		batch = append(batch, models.Verse{Translation: targetID, Book: book, Chapter: chapter, Verse: v.Verse, Text: v.Text})
	}
	if err := s.StoreVerses(ctx, batch); err != nil {
		return ai.TranslationResult{}, err
	}
	return res, nil
}

// coversChapter reports whether res has a verse for every verse of src.
// A completion cut short by the token limit parses to fewer verses and
// must not become the cached translation.
func coversChapter(res ai.TranslationResult, src *models.Chapter) bool {
	got := make(map[int]struct{}, len(res.Verses))
	for _, v := range res.Verses {
		got[v.Verse] = struct{}{}
	}
	for _, v := range src.Verses {
		if _, ok := got[v.Verse]; !ok {
			return false
		}
	}
	return true
}

func fromCache(cached, src *models.Chapter) ai.TranslationResult {
	originals := make(map[int]string, len(src.Verses))
	for _, v := range src.Verses {
		originals[v.Verse] = v.Text
	}
	out := make([]ai.TranslatedVerse, 0, len(cached.Verses))
	for _, v := range cached.Verses {
		out = append(out, ai.TranslatedVerse{Verse: v.Verse, Text: v.Text, OriginalText: originals[v.Verse]})
	}
	return ai.TranslationResult{Verses: out, WasTranslated: true}
}

func (s *contentService) ClearOfflineData(ctx context.Context) error {
	return s.db.Clear(ctx, store.AllCollections...)
}

func (s *contentService) Usage(ctx context.Context) (store.Usage, error) {
	return s.db.Usage(ctx)
}
