package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
//
// RefreshToken и RefreshExpiresAt описывают единственную активную сессию
// аккаунта: оба поля либо заполнены, либо nil одновременно (инвариант
// закреплён CHECK-ограничением в схеме). Каждый успешный login/refresh
// перезаписывает пару целиком, старое значение при этом перестаёт быть
// действительным.
type User struct {
	ID               uuid.UUID
	Email            string
	FirstName        string
	LastName         string
	PasswordHash     string
	RefreshToken     *string
	RefreshExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName возвращает отображаемое имя пользователя.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
