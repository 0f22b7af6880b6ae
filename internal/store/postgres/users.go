package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/smartmarks/internal/dbx"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// UserRepository implements user storage over a dbx.DBTX.
type UserRepository struct {
	db    dbx.DBTX
	newID func() string
}

// NewUserRepository constructs a repository bound to the given DBTX.
func NewUserRepository(db dbx.DBTX) *UserRepository {
	return &UserRepository{db: db, newID: func() string { return uuid.NewString() }}
}

// Upsert creates the user on first sign-in and refreshes the profile on later
// ones. Users are keyed by (provider, subject).
func (r *UserRepository) Upsert(ctx context.Context, id domain.Identity) (domain.User, error) {
	query := `
		INSERT INTO users (id, provider, subject, email, name, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, subject)
		DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			avatar_url = EXCLUDED.avatar_url
		RETURNING id, email, name, avatar_url`

	var u domain.User
	err := r.db.QueryRowContext(ctx, query,
		r.newID(), id.Provider, id.Subject, id.Email, id.Name, id.AvatarURL,
	).Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

// Get loads a user by id.
func (r *UserRepository) Get(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, avatar_url FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
