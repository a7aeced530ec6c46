package usercontent

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE user_content (
  id         TEXT PRIMARY KEY,
  type       TEXT    NOT NULL,
  reference  TEXT    NOT NULL,
  data       BLOB    NOT NULL,
  created_at INTEGER NOT NULL,
  synced_at  INTEGER,
  synced_by  TEXT
);
CREATE TABLE user_content_tombstones (
  id         TEXT PRIMARY KEY,
  deleted_at INTEGER NOT NULL,
  user_id    TEXT NOT NULL DEFAULT ''
);`)
	require.NoError(t, err)
	return db
}

func newContent(typ models.ContentType, ref string, ms int64) models.UserContent {
	created := time.UnixMilli(ms).UTC()
	return models.UserContent{
		ID:        models.UserContentID(typ, ref, created),
		Type:      typ,
		Reference: ref,
		Data:      map[string]any{"color": "yellow"},
		CreatedAt: created,
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	c := newContent(models.ContentTypeHighlight, "John 3:16", 1000)
	require.NoError(t, r.Put(ctx, c))

	got, err := r.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, &c, got)
	require.Nil(t, got.SyncedAt)
}

func TestPut_ExistingIDIsRejected(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	c := newContent(models.ContentTypeNote, "John 3:16", 1000)
	require.NoError(t, r.Put(ctx, c))

	other := c
	other.Data = map[string]any{"text": "overwritten"}
	err := r.Put(ctx, other)
	require.ErrorIs(t, err, common.ErrDuplicateID)

	got, err := r.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "yellow", got.Data["color"])
	require.NotContains(t, got.Data, "text")
}

func TestGet_Missing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	got, err := r.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestByType_IsolatesTypesInInsertionOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	b2 := newContent(models.ContentTypeBookmark, "Gen 1:1", 3000)
	b1 := newContent(models.ContentTypeBookmark, "Rev 22:21", 1000)
	h := newContent(models.ContentTypeHighlight, "Ps 23:1", 2000)
	for _, c := range []models.UserContent{b2, h, b1} {
		require.NoError(t, r.Put(ctx, c))
	}

	bookmarks, err := r.ByType(ctx, models.ContentTypeBookmark)
	require.NoError(t, err)
	require.Len(t, bookmarks, 2)
	assert.Equal(t, b2.ID, bookmarks[0].ID)
	assert.Equal(t, b1.ID, bookmarks[1].ID)

	notes, err := r.ByType(ctx, models.ContentTypeNote)
	require.NoError(t, err)
	require.NotNil(t, notes)
	require.Empty(t, notes)
}

func TestPendingAndMarkSynced(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := newContent(models.ContentTypeNote, "Rom 8:28", 1000)
	b := newContent(models.ContentTypeNote, "Rom 8:29", 2000)
	require.NoError(t, r.Put(ctx, a))
	require.NoError(t, r.Put(ctx, b))

	at := time.UnixMilli(5000).UTC()
	require.NoError(t, r.MarkSynced(ctx, a.ID, "u1", at))

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, b.ID, pending[0].ID)

	got, err := r.Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SyncedAt)
	require.True(t, at.Equal(*got.SyncedAt))
	require.Equal(t, "u1", got.SyncedBy)
}

func TestDelete_IsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	c := newContent(models.ContentTypeBookmark, "Gen 1:1", 1000)
	require.NoError(t, r.Put(ctx, c))
	require.NoError(t, r.Delete(ctx, c.ID))
	require.NoError(t, r.Delete(ctx, c.ID))

	got, err := r.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTombstones(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.PutTombstone(ctx, models.Tombstone{ID: "b", UserID: "u2", DeletedAt: time.UnixMilli(2000)}))
	require.NoError(t, r.PutTombstone(ctx, models.Tombstone{ID: "a", UserID: "u1", DeletedAt: time.UnixMilli(1000)}))

	ts, err := r.Tombstones(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	require.Equal(t, "a", ts[0].ID)
	require.Equal(t, "u1", ts[0].UserID)
	require.Equal(t, "b", ts[1].ID)
	require.Equal(t, "u2", ts[1].UserID)

	require.NoError(t, r.DropTombstone(ctx, "a"))
	ts, err = r.Tombstones(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	require.Equal(t, "b", ts[0].ID)
}

func TestGet_CorruptDataIsAnError(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO user_content (id, type, reference, data, created_at) VALUES ('x', 'note', 'r', 'not json', 1)`)
	require.NoError(t, err)

	_, err = NewSQLiteRepository(db).Get(context.Background(), "x")
	require.ErrorContains(t, err, "failed to get user content x")
}

func TestMarkSynced_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE user_content SET synced_at`).WillReturnError(errors.New("readonly database"))

	err = NewSQLiteRepository(db).MarkSynced(context.Background(), "x", "u1", time.Now())
	require.ErrorContains(t, err, "failed to mark user content x synced")
	require.NoError(t, mock.ExpectationsWereMet())
}
