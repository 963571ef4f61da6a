package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/avelichko/accounts-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testUser() *models.User {
	return &models.User{
		ID:        uuid.New(),
		Email:     "user@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestGenerateAccessToken_AndValidate_OK(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := testUser()
	now := time.Now().UTC()

	at, expiresAt, err := svc.generateAccessToken(ctx, user, now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(testCfg().AccessTokenTTL), expiresAt, time.Second)

	vUID, vEmail, err := svc.ValidateAccessToken(ctx, at)
	require.NoError(t, err)
	require.Equal(t, user.ID, vUID)
	require.Equal(t, user.Email, vEmail)
}

func TestGenerateAccessToken_Claims(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := testUser()
	now := time.Now().UTC().Truncate(time.Second)

	at, _, err := svc.generateAccessToken(context.Background(), user, now)
	require.NoError(t, err)

	var claims accessClaims
	_, err = jwt.ParseWithClaims(at, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testCfg().JWTSecret), nil
	})
	require.NoError(t, err)

	require.Equal(t, user.ID.String(), claims.Subject)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, "Ada Lovelace", claims.Name)
	require.Equal(t, testCfg().Issuer, claims.Issuer)
	require.Equal(t, now.Add(testCfg().AccessTokenTTL).Unix(), claims.ExpiresAt.Unix())

	// jti уникален для каждого выпуска.
	require.NotEmpty(t, claims.ID)
	_, err = uuid.Parse(claims.ID)
	require.NoError(t, err)

	at2, _, err := svc.generateAccessToken(context.Background(), user, now)
	require.NoError(t, err)
	var claims2 accessClaims
	_, err = jwt.ParseWithClaims(at2, &claims2, func(*jwt.Token) (interface{}, error) {
		return []byte(testCfg().JWTSecret), nil
	})
	require.NoError(t, err)
	require.NotEqual(t, claims.ID, claims2.ID)
}

func TestValidateAccessToken_TamperedSignature(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	at, _, err := svc.generateAccessToken(context.Background(), testUser(), time.Now().UTC())
	require.NoError(t, err)

	// Портим последний байт подписи.
	tampered := []byte(at)
	if tampered[len(tampered)-1] == 'A' {
		tampered[len(tampered)-1] = 'B'
	} else {
		tampered[len(tampered)-1] = 'A'
	}

	_, _, err = svc.ValidateAccessToken(context.Background(), string(tampered))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_WrongAlg_WrongIssuer_WrongAudience(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	secret := []byte(testCfg().JWTSecret)
	uid := uuid.New()
	now := time.Now().UTC()

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"email": "a@b.c",
			"iss":   testCfg().Issuer,
			"sub":   uid.String(),
			"aud":   testCfg().Audience,
			"exp":   now.Add(15 * time.Minute).Unix(),
			"iat":   now.Unix(),
		}
	}

	t.Run("wrong alg", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, base())
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, _, err = svc.ValidateAccessToken(context.Background(), signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := base()
		claims["iss"] = "someone-else"
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, _, err = svc.ValidateAccessToken(context.Background(), signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := base()
		claims["aud"] = []string{"another-service"}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, _, err = svc.ValidateAccessToken(context.Background(), signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidateAccessToken_Expired(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Выпускаем токен «в прошлом»: он уже истёк с учётом leeway.
	past := time.Now().UTC().Add(-time.Hour)
	at, _, err := svc.generateAccessToken(context.Background(), testUser(), past)
	require.NoError(t, err)

	_, _, err = svc.ValidateAccessToken(context.Background(), at)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.ValidateAccessToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateRefreshToken_SizeAndEncoding(t *testing.T) {
	t.Parallel()

	token, err := generateRefreshToken()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	require.Len(t, raw, refreshTokenBytes)
}

func TestGenerateRefreshToken_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token, err := generateRefreshToken()
		require.NoError(t, err)

		_, dup := seen[token]
		require.False(t, dup, "refresh token collision")
		seen[token] = struct{}{}
	}
}
