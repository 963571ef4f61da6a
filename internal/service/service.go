// service содержит бизнес-логику сервиса аккаунтов:
// регистрацию пользователей, вход по email+паролю, выпуск и ротацию
// refresh-токенов. Работа с хранилищем и хэшированием паролей идёт через
// интерфейсы (storage.Storage, security.PasswordHasher).
//
// Основные аспекты:
//   - Сервис не хранит состояние запроса: всё durable-состояние живёт во
//     внешнем хранилище, каждый вызов — read-then-write поверх него.
//     Экземпляр Service безопасен для конкурентного использования при
//     потокобезопасном хранилище.
//   - У аккаунта не больше одной активной сессии: refresh-токен лежит прямо
//     на записи пользователя и перезаписывается каждым успешным
//     login/refresh. Отдельной операции отзыва нет, просроченные значения
//     никто не чистит — их перекроет следующая успешная выдача.
//   - Именованные ошибки ниже всегда доходят до вызывающего как есть;
//     транспорт маппит их на HTTP-статусы.
package service

import (
	"errors"
	"time"

	"github.com/avelichko/accounts-service/internal/cache"
	"github.com/avelichko/accounts-service/internal/config"
	"github.com/avelichko/accounts-service/internal/security"
	"github.com/avelichko/accounts-service/internal/storage"
)

var (
	// ErrEmailTaken — аккаунт с таким email уже существует (без учёта
	// регистра). Транспорт: 409 Conflict.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidCredentials — пара email/пароль неверна. Ошибка намеренно
	// одна и та же для «нет такого аккаунта» и «неверный пароль», чтобы не
	// выдавать существование email. Транспорт: 401 Unauthorized.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingToken — refresh-токен не предъявлен. Проверяется до любого
	// обращения к хранилищу. Транспорт: 401 Unauthorized.
	ErrMissingToken = errors.New("refresh token is missing")

	// ErrInvalidToken — ни один аккаунт сейчас не держит это значение
	// refresh-токена (в т.ч. токен уже заменён конкурентной ротацией).
	// Транспорт: 401 Unauthorized.
	ErrInvalidToken = errors.New("invalid refresh token")

	// ErrTokenExpired — срок действия refresh-токена истёк. Само значение
	// при этом не стирается. Транспорт: 401 Unauthorized.
	ErrTokenExpired = errors.New("refresh token expired")

	// ErrInvalidEmail — email имеет некорректный формат.
	// Транспорт: 400 Bad Request.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не прошёл политику примитива хэширования.
	// Транспорт: 400 Bad Request.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrAccountNotFound — аккаунт с таким ID не существует.
	// Транспорт: 404 Not Found.
	ErrAccountNotFound = errors.New("account not found")
)

// Service реализует управление аккаунтами и их сессиями.
type Service struct {
	storage storage.Storage
	hasher  security.PasswordHasher
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован

	// источник времени; подменяется в тестах.
	now func() time.Time
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, hasher security.PasswordHasher, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		hasher:  hasher,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}
