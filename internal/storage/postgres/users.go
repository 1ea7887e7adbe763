package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/trading"
)

const userColumns = `user_id, username, first_name, last_name, email, password_hash,
       bio, location, avatar_url, ratingcount, avgstars, tot_xppts, level, created_at`

// UserByID возвращает пользователя по ID
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users_tbl
        WHERE user_id = $1
    `, id)
	return scanUser(row)
}

// UserByLogin ищет пользователя по username или email
func (s *Store) UserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users_tbl
        WHERE username = $1 OR email = $1
    `, identifier)
	return scanUser(row)
}

// CreateUser регистрирует нового пользователя
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO users_tbl
            (user_id, username, first_name, last_name, email, password_hash,
             bio, location, avatar_url, ratingcount, avgstars, tot_xppts, level, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, 0, 1, $10)
    `, u.ID, u.Username, u.FirstName, u.LastName, u.Email, u.PasswordHash,
		u.Bio, u.Location, u.AvatarURL, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("создание пользователя: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Bio, &u.Location, &u.AvatarURL,
		&u.RatingCount, &u.AvgStars, &u.TotalXP, &u.Level, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь: %w", trading.ErrNotFound)
		}
		return nil, fmt.Errorf("чтение пользователя: %w", err)
	}
	return &u, nil
}
