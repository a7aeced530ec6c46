package translations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scriptureforge/offline/internal/dbx"
	"github.com/scriptureforge/offline/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, t models.Translation) error {
	query := `INSERT INTO translations (id, name, abbreviation, downloaded_at, verse_count)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name,
				abbreviation = excluded.abbreviation,
				downloaded_at = excluded.downloaded_at,
				verse_count = excluded.verse_count`

	_, err := r.db.ExecContext(ctx, query, t.ID, t.Name, t.Abbreviation, t.DownloadedAt.UnixMilli(), t.VerseCount)
	if err != nil {
		return fmt.Errorf("failed to put translation %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Translation, error) {
	query := `SELECT id, name, abbreviation, downloaded_at, verse_count FROM translations WHERE id = ?`

	t, err := scanTranslation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get translation %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Translation, error) {
	query := `SELECT id, name, abbreviation, downloaded_at, verse_count FROM translations ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select translations: %w", err)
	}
	defer rows.Close()

	result := []models.Translation{}
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate translations: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM translations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete translation %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranslation(s scanner) (*models.Translation, error) {
	var (
		t  models.Translation
		ms int64
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Abbreviation, &ms, &t.VerseCount); err != nil {
		return nil, err
	}
	t.DownloadedAt = time.UnixMilli(ms).UTC()
	return &t, nil
}
