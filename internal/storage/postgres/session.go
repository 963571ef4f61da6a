package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avelichko/accounts-service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SetRefreshToken безусловно перезаписывает refresh-токен пользователя.
// Прежнее значение (если было) перестаёт быть действительным сразу после
// видимости этой записи: по нему больше нечего найти.
func (s *Storage) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	const op = "storage.postgres.SetRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = $2, refresh_expires_at = $3, updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// RotateRefreshToken заменяет oldToken на newToken одним условным UPDATE.
// Условие WHERE refresh_token = $old делает ротацию compare-and-swap'ом:
// из двух конкурентных refresh по одному и тому же токену ряд изменит
// ровно один. Возвращает:
//
//	(true, nil)  — токен совпал и заменён этим вызовом;
//	(false, nil) — сохранённое значение уже другое (ротация проиграна).
func (s *Storage) RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	const op = "storage.postgres.RotateRefreshToken"

	const upd = `
		UPDATE users
		SET refresh_token = $3, refresh_expires_at = $4, updated_at = now()
		WHERE id = $1 AND refresh_token = $2
		RETURNING id
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, upd, userID, oldToken, newToken, expiresAt).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}

	return false, fmt.Errorf("%s: %w", op, err)
}
