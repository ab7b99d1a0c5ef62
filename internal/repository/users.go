package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-orlov/invoicebot/internal/domain"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, telegram_id, username, first_name, last_name,
	is_admin, is_blocked, blocked_at, blocked_by, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.IsAdmin, &u.IsBlocked, &u.BlockedAt, &u.BlockedBy,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindOrCreate returns the user with the given telegram id, creating a
// record on first contact. Name fields are refreshed on every call so the
// stored profile tracks the chat profile.
func (r *UserRepository) FindOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string, isAdmin bool) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    is_admin = EXCLUDED.is_admin,
		    updated_at = NOW()
		RETURNING `+userColumns,
		telegramID, username, firstName, lastName, isAdmin,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	return scanUser(row)
}

// SetBlocked blocks or unblocks a user, recording the acting admin and
// the time for blocks.
func (r *UserRepository) SetBlocked(ctx context.Context, telegramID int64, blocked bool, actorTelegramID int64) error {
	var blockedAt *time.Time
	var blockedBy *int64
	if blocked {
		now := time.Now().UTC()
		blockedAt = &now
		blockedBy = &actorTelegramID
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET is_blocked = $2, blocked_at = $3, blocked_by = $4, updated_at = NOW()
		WHERE telegram_id = $1`,
		telegramID, blocked, blockedAt, blockedBy,
	)
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
