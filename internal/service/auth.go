package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/avelichko/accounts-service/internal/cache"
	"github.com/avelichko/accounts-service/internal/models"
	"github.com/avelichko/accounts-service/internal/pkg/log"
	"github.com/avelichko/accounts-service/internal/pkg/redact"
	"github.com/avelichko/accounts-service/internal/security"
	"github.com/avelichko/accounts-service/internal/storage"

	"github.com/google/uuid"
)

// RegisterUser регистрирует нового пользователя.
// Токены при регистрации не выдаются: аккаунт создаётся без сессии,
// вход — отдельная операция.
func (s *Service) RegisterUser(ctx context.Context, email, firstName, lastName, password string) (uuid.UUID, error) {
	const op = "service.auth.RegisterUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrWeakPassword)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		// Гонка двух регистраций на один email: уникальный индекс
		// сработал после нашей проверки.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return user.ID, nil
}

// LoginUser выполняет вход по email+пароль и выдаёт новую пару токенов.
// Успешный вход перезаписывает refresh-токен на записи пользователя,
// чем немедленно отзывает предыдущую сессию.
func (s *Service) LoginUser(ctx context.Context, email, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.LoginUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.From(ctx).Warn("login_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.newTokenPair(ctx, user)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	// Сначала durable-запись, и только потом токены уходят наружу:
	// при ошибке хранилища вызывающий не видит частичного результата.
	if err := s.storage.SetRefreshToken(ctx, user.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheSwap(ctx, user.RefreshToken, user.ID, pair)

	return pair, user.ID, nil
}

// RefreshSession обменивает предъявленный refresh-токен на новую пару.
// Токен — единственный credential на этом шаге: поиск идёт по точному
// значению, без привязки к пользователю.
func (s *Service) RefreshSession(ctx context.Context, presented string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RefreshSession"

	if presented == "" {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrMissingToken)
	}

	// Быстрый отказ по кэшу: просроченный токен можно отклонить без БД.
	// Положительный ответ кэш дать не может — успех решает только
	// условный UPDATE ниже.
	if s.rcache != nil {
		if entry, found, err := s.rcache.Get(ctx, presented); err == nil && found {
			if s.now().After(entry.ExpiresAt) {
				return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
			}
		}
	}

	user, err := s.storage.UserByRefreshToken(ctx, presented)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("refresh_lookup_not_found",
				slog.String("op", op),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.RefreshExpiresAt == nil || s.now().After(*user.RefreshExpiresAt) {
		// Просроченное значение остаётся на записи: его перекроет
		// следующий успешный login/refresh.
		log.From(ctx).Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	pair, err := s.newTokenPair(ctx, user)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	rotated, err := s.storage.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken, pair.RefreshExpiresAt)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if !rotated {
		// Конкурентный refresh с тем же токеном успел раньше: для нас
		// значение уже вытеснено и токен недействителен.
		log.From(ctx).Warn("refresh_rotation_lost",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	s.cacheSwap(ctx, &presented, user.ID, pair)

	return pair, user.ID, nil
}

// Account возвращает учётную запись по ID (для эндпоинта профиля).
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.auth.Account"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// validateEmail проверяет базовый формат email и нормализует его к нижнему
// регистру: уникальность аккаунтов регистронезависимая.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

// cacheSwap вытесняет из кэша прежний токен и кладёт новый. Кэш — best
// effort: его ошибки логируются и не влияют на результат операции.
func (s *Service) cacheSwap(ctx context.Context, old *string, userID uuid.UUID, pair *models.TokenPair) {
	if s.rcache == nil {
		return
	}

	lg := log.From(ctx)

	if old != nil && *old != "" {
		if err := s.rcache.Delete(ctx, *old); err != nil {
			lg.Warn("refresh_cache_delete_failed", slog.String("err", err.Error()))
		}
	}

	entry := &cache.RefreshEntry{
		UserID:    userID,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	ttl := pair.RefreshExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}

	if err := s.rcache.Set(ctx, pair.RefreshToken, entry, ttl); err != nil {
		lg.Warn("refresh_cache_set_failed", slog.String("err", err.Error()))
	}
}
