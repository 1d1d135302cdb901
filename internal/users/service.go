// Package users persists the Telegram accounts interacting with the bot.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapfetch/snapfetch/internal/db"
)

var ErrNotFound = errors.New("user not found")

type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "users")),
	}
}

// Touch records the profile from an incoming update, creating the user
// on first contact and refreshing the mutable fields afterwards.
func (s *Service) Touch(ctx context.Context, p Profile) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("user store not configured")
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_id, username, first_name, language_code, last_seen_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    language_code = EXCLUDED.language_code,
		    last_seen_at = now()
		RETURNING id, telegram_id, username, first_name, language_code, created_at, last_seen_at`,
		p.TelegramID, p.Username, p.FirstName, p.LanguageCode,
	)
	return scanUser(row)
}

// GetByTelegramID looks a user up by their Telegram identifier.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("user store not configured")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, telegram_id, username, first_name, language_code, created_at, last_seen_at
		FROM users WHERE telegram_id = $1`, telegramID,
	)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

// Get looks a user up by internal id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("user store not configured")
	}
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return User{}, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, telegram_id, username, first_name, language_code, created_at, last_seen_at
		FROM users WHERE id = $1`, pgID,
	)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

// Count returns the total number of known users.
func (s *Service) Count(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("user store not configured")
	}
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u        User
		id       pgtype.UUID
		username *string
		first    *string
		lang     *string
	)
	if err := row.Scan(&id, &u.TelegramID, &username, &first, &lang, &u.CreatedAt, &u.LastSeenAt); err != nil {
		return User{}, err
	}
	u.ID = db.UUIDToString(id)
	if username != nil {
		u.Username = *username
	}
	if first != nil {
		u.FirstName = *first
	}
	if lang != nil {
		u.LanguageCode = *lang
	}
	return u, nil
}
