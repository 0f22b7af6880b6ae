// Package postgres provides the SQL repositories behind the users and
// bookmarks tables.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/smartmarks/internal/dbx"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// BookmarkRepository implements bookmark storage over a dbx.DBTX.
type BookmarkRepository struct {
	db   dbx.DBTX
	root *sql.DB // nil when bound to a transaction
}

// NewBookmarkRepository binds the repository to a pool.
func NewBookmarkRepository(db *sql.DB) *BookmarkRepository {
	return &BookmarkRepository{db: db, root: db}
}

// SelectByOwner returns the user's bookmarks, newest first.
func (r *BookmarkRepository) SelectByOwner(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	query := `
		SELECT id, user_id, title, url, created_at
		FROM bookmarks
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select bookmarks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Bookmark, 0)
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return result, nil
}

// Insert stores b (ID already assigned) and returns it with created_at set.
func (r *BookmarkRepository) Insert(ctx context.Context, b domain.Bookmark) (domain.Bookmark, error) {
	query := `
		INSERT INTO bookmarks (id, user_id, title, url)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query, b.ID, b.UserID, b.Title, b.URL).Scan(&b.CreatedAt); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to insert bookmark: %w", err)
	}
	return b, nil
}

// InsertMany stores all bookmarks in one transaction.
func (r *BookmarkRepository) InsertMany(ctx context.Context, bookmarks []domain.Bookmark) ([]domain.Bookmark, error) {
	if r.root == nil {
		return r.insertAll(ctx, bookmarks)
	}

	var stored []domain.Bookmark
	err := dbx.WithTx(ctx, r.root, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		stored, err = (&BookmarkRepository{db: tx}).insertAll(ctx, bookmarks)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *BookmarkRepository) insertAll(ctx context.Context, bookmarks []domain.Bookmark) ([]domain.Bookmark, error) {
	stored := make([]domain.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		saved, err := r.Insert(ctx, b)
		if err != nil {
			return nil, err
		}
		stored = append(stored, saved)
	}
	return stored, nil
}

// DeleteOwned removes the bookmark id when it belongs to userID and returns
// the deleted row. A missing row returns (nil, nil); a row owned by someone
// else returns domain.ErrPermissionDenied.
func (r *BookmarkRepository) DeleteOwned(ctx context.Context, id, userID string) (*domain.Bookmark, error) {
	query := `
		DELETE FROM bookmarks
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, url, created_at`

	var b domain.Bookmark
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to delete bookmark: %w", err)
	}

	var owner string
	err = r.db.QueryRowContext(ctx, `SELECT user_id FROM bookmarks WHERE id = $1`, id).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to check bookmark owner: %w", err)
	default:
		return nil, domain.ErrPermissionDenied
	}
}

// URLsByOwner returns the set of URLs the user already bookmarked.
func (r *BookmarkRepository) URLsByOwner(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url FROM bookmarks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select bookmark urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark url: %w", err)
		}
		urls[u] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmark urls: %w", err)
	}
	return urls, nil
}
