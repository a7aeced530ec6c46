package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/models"
)

// parseChapterRef splits "<translation> <book words...> <chapter>". Book
// names may contain spaces ("1 John", "Song of Solomon").
func parseChapterRef(args []string) (translation, book string, chapter int, ok bool) {
	if len(args) < 3 {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(args[len(args)-1])
	if err != nil || n < 1 {
		return "", "", 0, false
	}
	return args[0], strings.Join(args[1:len(args)-1], " "), n, true
}

func (a *App) Chapter(ctx context.Context, args []string) error {
	translation, book, chapter, ok := parseChapterRef(args)
	if !ok {
		return errUsage("chapter <translation> <book> <chapter>")
	}

	ch, err := a.content.GetOfflineChapter(ctx, translation, book, chapter)
	if err != nil {
		return err
	}
	if ch == nil {
		a.printf("%s %d (%s) is not available offline\n", book, chapter, translation)
		return nil
	}

	a.printf("%s %d (%s)\n", ch.Book, ch.Chapter, ch.Translation)
	for _, v := range ch.Verses {
		a.printf("%3d  %s\n", v.Verse, v.Text)
	}
	return nil
}

func (a *App) Translations(ctx context.Context, _ []string) error {
	list, err := a.content.GetDownloadedTranslations(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No translations downloaded\n")
		return nil
	}
	for _, t := range list {
		a.printf("%-12s %-6s %-30s %6d verses  %s\n",
			t.ID, t.Abbreviation, t.Name, t.VerseCount, t.DownloadedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *App) Translate(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return errUsage("translate <translation> <book> <chapter> <lang>")
	}
	lang := args[len(args)-1]
	translation, book, chapter, ok := parseChapterRef(args[:len(args)-1])
	if !ok {
		return errUsage("translate <translation> <book> <chapter> <lang>")
	}

	res, err := a.content.TranslateChapter(ctx, translation, book, chapter, lang)
	if err != nil {
		return err
	}
	if !res.WasTranslated && lang != ai.SourceLanguage {
		a.printf("Translation unavailable, showing original text\n")
	}
	for _, v := range res.Verses {
		a.printf("%3d  %s\n", v.Verse, v.Text)
	}
	return nil
}

// downloadFile is the on-disk format accepted by the download command.
type downloadFile struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Verses       []struct {
		Book    string `json:"book"`
		Chapter int    `json:"chapter"`
		Verse   int    `json:"verse"`
		Text    string `json:"text"`
	} `json:"verses"`
}

// Download imports a whole translation from a JSON file and marks it
// downloaded once every verse is stored.
func (a *App) Download(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage("download <translation> <file.json>")
	}
	id, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f downloadFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Verses) == 0 {
		return fmt.Errorf("%s contains no verses", path)
	}

	batch := make([]models.Verse, 0, len(f.Verses))
	for _, v := range f.Verses {
		batch = append(batch, models.Verse{Book: v.Book, Chapter: v.Chapter, Verse: v.Verse, Text: v.Text})
	}
	name := f.Name
	if name == "" {
		name = id
	}
	meta := models.Translation{ID: id, Name: name, Abbreviation: f.Abbreviation}

	if err := a.content.DownloadTranslation(ctx, meta, batch); err != nil {
		return err
	}
	a.printf("Downloaded %s: %d verses\n", id, len(batch))
	return nil
}

func (a *App) Usage(ctx context.Context, _ []string) error {
	u, err := a.content.Usage(ctx)
	if err != nil {
		return err
	}
	if u.Quota > 0 {
		a.printf("Used %d of %d bytes (%.1f%%)\n", u.Used, u.Quota, u.Percentage)
	} else {
		a.printf("Used %d bytes\n", u.Used)
	}
	return nil
}

// Clear erases cached Scripture and annotations after confirmation.
func (a *App) Clear(ctx context.Context, _ []string) error {
	answer, err := getSimpleText(a.reader, "Erase all offline data? Type 'yes' to confirm", a.out)
	if err != nil {
		return err
	}
	if answer != "yes" {
		a.printf("Cancelled\n")
		return nil
	}
	if err := a.content.ClearOfflineData(ctx); err != nil {
		return err
	}
	a.printf("Offline data erased\n")
	return nil
}
