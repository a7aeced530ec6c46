package models

import (
	"fmt"
	"time"
)

// ContentType classifies a user annotation.
type ContentType string

const (
	ContentTypeBookmark  ContentType = "bookmark"
	ContentTypeHighlight ContentType = "highlight"
	ContentTypeNote      ContentType = "note"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeBookmark, ContentTypeHighlight, ContentTypeNote:
		return true
	}
	return false
}

// UserContent is a bookmark, highlight or note attached to a Scripture
// reference. Records are never updated in place; edits are delete+recreate.
type UserContent struct {
	ID        string         `json:"id"`
	Type      ContentType    `json:"type"`
	Reference string         `json:"reference"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
	// SyncedAt stays nil until a remote round-trip confirms persistence.
	SyncedAt *time.Time `json:"syncedAt,omitempty"`
	// SyncedBy is the user whose remote namespace holds the record.
	SyncedBy string `json:"syncedBy,omitempty"`
}

// UserContentID builds the synthetic id "type-reference-unixmillis".
func UserContentID(t ContentType, reference string, createdAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", t, reference, createdAt.UnixMilli())
}

// Tombstone marks a synced record that was deleted locally and still has
// to be removed remotely, from the namespace of UserID.
type Tombstone struct {
	ID        string
	UserID    string
	DeletedAt time.Time
}
