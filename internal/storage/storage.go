package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avelichko/accounts-service/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь по email/id/refresh-токену).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	// Возвращает ErrAlreadyExists при конфликте email (без учёта регистра).
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByRefreshToken находит пользователя, на котором сейчас висит
	// ровно это значение refresh-токена. Сравнение строгое, по точному
	// совпадению строки.
	UserByRefreshToken(ctx context.Context, token string) (*models.User, error)
}

// SessionStorage выполняет операции над refresh-токеном учётной записи.
type SessionStorage interface {
	// SetRefreshToken безусловно перезаписывает refresh-токен и срок его
	// действия на записи пользователя (login: прежняя сессия отзывается
	// самим фактом перезаписи).
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	// RotateRefreshToken атомарно заменяет oldToken на newToken одним
	// условным UPDATE. Возвращает:
	//
	//	(true, nil)  — ротация выполнена этим вызовом;
	//	(false, nil) — сохранённое значение уже не равно oldToken
	//	               (конкурентная ротация успела раньше);
	//	(false, err) — ошибка хранилища.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string, expiresAt time.Time) (bool, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
