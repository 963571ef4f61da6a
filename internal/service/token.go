package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelichko/accounts-service/internal/models"
	"github.com/avelichko/accounts-service/internal/pkg/log"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshTokenBytes — размер случайного секрета refresh-токена.
// 512 бит энтропии: вероятность коллизии пренебрежимо мала.
const refreshTokenBytes = 64

type accessClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// generateAccessToken выпускает подписанный access-токен.
// Claims: sub — ID пользователя, jti — уникальный идентификатор токена
// (новый на каждый вызов), email, name, iss/aud/iat/exp из конфигурации.
// Побочных эффектов нет: результат — чистая функция аккаунта, времени и
// конфигурации.
func (s *Service) generateAccessToken(ctx context.Context, user *models.User, now time.Time) (string, time.Time, error) {
	const op = "service.token.generateAccessToken"

	expiresAt := now.Add(s.cfg.AccessTokenTTL)

	claims := accessClaims{
		Email: user.Email,
		Name:  user.FullName(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

// ValidateAccessToken проверяет подпись, алгоритм, издателя, аудиторию и
// срок действия access-токена; возвращает ID и email субъекта.
// Любой токен, выпущенный generateAccessToken, проходит эти проверки до
// своего истечения (leeway 5s на рассинхронизацию часов).
func (s *Service) ValidateAccessToken(ctx context.Context, tokenStr string) (uuid.UUID, string, error) {
	const op = "service.token.ValidateAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &accessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return uid, claims.Email, nil
}

// generateRefreshToken возвращает новый непрозрачный refresh-токен:
// 64 байта из CSPRNG в base64url без паддинга.
func generateRefreshToken() (string, error) {
	const op = "service.token.generateRefreshToken"

	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newTokenPair собирает новую пару токенов в памяти, ничего не персистя:
// durable-запись refresh-половины — забота вызывающего, и пара уходит
// наружу только после её успеха.
func (s *Service) newTokenPair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.token.newTokenPair"

	now := s.now()

	access, accessExp, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := generateRefreshToken()
	if err != nil {
		log.From(ctx).Error("refresh_rand_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}, nil
}
