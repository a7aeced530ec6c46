// Package models defines the records kept by the offline store: Scripture
// text, downloaded-translation bookkeeping, user annotations and chat history.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Verse is one verse of one translation. It is written once, on the first
// successful fetch or translation of its chapter, and never mutated.
type Verse struct {
	Translation string `json:"translation"`
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse"`
	Text        string `json:"text"`
}

// ID returns the composite primary key "translation-book-chapter-verse".
func (v Verse) ID() string {
	return VerseID(v.Translation, v.Book, v.Chapter, v.Verse)
}

// VerseID builds the primary key of a verse. Dashes and percent signs in the
// translation and book are percent-encoded so that distinct tuples never share
// an id.
func VerseID(translation, book string, chapter, verse int) string {
	return fmt.Sprintf("%s-%s-%d-%d", idEscaper.Replace(translation), idEscaper.Replace(book), chapter, verse)
}

var idEscaper = strings.NewReplacer("%", "%25", "-", "%2D")

// ChapterVerse is a verse as returned for chapter reads.
type ChapterVerse struct {
	Verse int    `json:"verse"`
	Text  string `json:"text"`
}

// Chapter is a cached chapter, verses sorted ascending by number.
type Chapter struct {
	Translation string         `json:"translation"`
	Book        string         `json:"book"`
	Chapter     int            `json:"chapter"`
	Verses      []ChapterVerse `json:"verses"`
}

// Translation records that a translation is fully available offline. Its
// presence is the commit marker of a download.
type Translation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation"`
	DownloadedAt time.Time `json:"downloadedAt"`
	VerseCount   int       `json:"verseCount"`
}
