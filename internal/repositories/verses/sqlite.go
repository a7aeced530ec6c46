package verses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scriptureforge/offline/internal/dbx"
	"github.com/scriptureforge/offline/internal/models"
)

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, v models.Verse) error {
	query := `INSERT INTO verses (id, translation, book, chapter, verse, text)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET translation = excluded.translation,
				book = excluded.book,
				chapter = excluded.chapter,
				verse = excluded.verse,
				text = excluded.text`

	_, err := r.db.ExecContext(ctx, query, v.ID(), v.Translation, v.Book, v.Chapter, v.Verse, v.Text)
	if err != nil {
		return fmt.Errorf("failed to put verse %s: %w", v.ID(), err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Verse, error) {
	query := `SELECT translation, book, chapter, verse, text FROM verses WHERE id = ?`

	v := &models.Verse{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&v.Translation, &v.Book, &v.Chapter, &v.Verse, &v.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verse %s: %w", id, err)
	}
	return v, nil
}

func (r *SQLiteRepository) ByChapter(ctx context.Context, translation, book string, chapter int) ([]models.Verse, error) {
	query := `SELECT translation, book, chapter, verse, text FROM verses
			WHERE translation = ? AND book = ? AND chapter = ?`

	rows, err := r.db.QueryContext(ctx, query, translation, book, chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to select chapter verses: %w", err)
	}
	defer rows.Close()

	var result []models.Verse
	for rows.Next() {
		var v models.Verse
		if err := rows.Scan(&v.Translation, &v.Book, &v.Chapter, &v.Verse, &v.Text); err != nil {
			return nil, fmt.Errorf("failed to scan verse: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verses: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) CountByTranslation(ctx context.Context, translation string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verses WHERE translation = ?`, translation).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count verses of %s: %w", translation, err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM verses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete verse %s: %w", id, err)
	}
	return nil
}
