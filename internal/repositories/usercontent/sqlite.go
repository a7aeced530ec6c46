package usercontent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/dbx"
	"github.com/scriptureforge/offline/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, type, reference, data, created_at, synced_at, synced_by FROM user_content`

// Put inserts c. Records are immutable, so an existing id is reported as
// common.ErrDuplicateID and the stored record is left untouched.
func (r *SQLiteRepository) Put(ctx context.Context, c models.UserContent) error {
	data, err := json.Marshal(c.Data)
	if err != nil {
		return fmt.Errorf("failed to encode user content %s: %w", c.ID, err)
	}

	var (
		synced   sql.NullInt64
		syncedBy sql.NullString
	)
	if c.SyncedAt != nil {
		synced = sql.NullInt64{Int64: c.SyncedAt.UnixMilli(), Valid: true}
		syncedBy = sql.NullString{String: c.SyncedBy, Valid: true}
	}

	query := `INSERT INTO user_content (id, type, reference, data, created_at, synced_at, synced_by)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, c.ID, string(c.Type), c.Reference, data, c.CreatedAt.UnixMilli(), synced, syncedBy)
	if err != nil {
		return fmt.Errorf("failed to put user content %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to put user content %s: %w", c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("user content %s: %w", c.ID, common.ErrDuplicateID)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.UserContent, error) {
	c, err := scanContent(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user content %s: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ByType(ctx context.Context, t models.ContentType) ([]models.UserContent, error) {
	return r.list(ctx, selectColumns+` WHERE type = ? ORDER BY rowid`, string(t))
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]models.UserContent, error) {
	return r.list(ctx, selectColumns+` WHERE synced_at IS NULL ORDER BY rowid`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.UserContent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select user content: %w", err)
	}
	defer rows.Close()

	result := []models.UserContent{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user content: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user content: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_content WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user content %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_content SET synced_at = ?, synced_by = ? WHERE id = ?`, at.UnixMilli(), userID, id)
	if err != nil {
		return fmt.Errorf("failed to mark user content %s synced: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) PutTombstone(ctx context.Context, ts models.Tombstone) error {
	query := `INSERT INTO user_content_tombstones (id, user_id, deleted_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, deleted_at = excluded.deleted_at`

	if _, err := r.db.ExecContext(ctx, query, ts.ID, ts.UserID, ts.DeletedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to put tombstone %s: %w", ts.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Tombstones(ctx context.Context) ([]models.Tombstone, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, deleted_at FROM user_content_tombstones ORDER BY deleted_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select tombstones: %w", err)
	}
	defer rows.Close()

	result := []models.Tombstone{}
	for rows.Next() {
		var (
			ts models.Tombstone
			ms int64
		)
		if err := rows.Scan(&ts.ID, &ts.UserID, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone: %w", err)
		}
		ts.DeletedAt = time.UnixMilli(ms).UTC()
		result = append(result, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tombstones: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DropTombstone(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_content_tombstones WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to drop tombstone %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(s scanner) (*models.UserContent, error) {
	var (
		c       models.UserContent
		typ     string
		data    []byte
		created int64
		synced  sql.NullInt64
		by      sql.NullString
	)
	if err := s.Scan(&c.ID, &typ, &c.Reference, &data, &created, &synced, &by); err != nil {
		return nil, err
	}
	c.Type = models.ContentType(typ)
	c.CreatedAt = time.UnixMilli(created).UTC()
	if synced.Valid {
		at := time.UnixMilli(synced.Int64).UTC()
		c.SyncedAt = &at
		c.SyncedBy = by.String
	}
	if err := json.Unmarshal(data, &c.Data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return &c, nil
}
