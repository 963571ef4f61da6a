package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func cheapHasher() *Argon2Hasher {
	return NewArgon2Hasher(Argon2Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
}

func TestHashAndVerify_OK(t *testing.T) {
	t.Parallel()

	h := cheapHasher()

	hash, err := h.Hash("Secret123!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := h.Verify(hash, "Secret123!")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerify_WrongPassword(t *testing.T) {
	t.Parallel()

	h := cheapHasher()

	hash, err := h.Hash("Secret123!")
	require.NoError(t, err)

	ok, err := h.Verify(hash, "WrongPass1!")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHash_TooShortPassword(t *testing.T) {
	t.Parallel()

	h := cheapHasher()

	_, err := h.Hash("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestHash_SaltIsRandomPerCall(t *testing.T) {
	t.Parallel()

	h := cheapHasher()

	h1, err := h.Hash("Secret123!")
	require.NoError(t, err)
	h2, err := h.Hash("Secret123!")
	require.NoError(t, err)

	// Одинаковый пароль — разные соли, разные строки.
	require.NotEqual(t, h1, h2)
}

func TestVerify_ParamsTakenFromHash(t *testing.T) {
	t.Parallel()

	// Хэш создан одними параметрами, проверяется хэшером с другими:
	// стоимость читается из PHC-строки, а не из конфигурации.
	old := cheapHasher()
	hash, err := old.Hash("Secret123!")
	require.NoError(t, err)

	upgraded := NewArgon2Hasher(Argon2Params{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 2,
	})

	ok, err := upgraded.Verify(hash, "Secret123!")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerify_MalformedHash(t *testing.T) {
	t.Parallel()

	h := cheapHasher()

	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	}

	for _, c := range cases {
		_, err := h.Verify(c, "Secret123!")
		require.Error(t, err, "hash: %q", c)
	}
}

func TestDefaults_Applied(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(Argon2Params{})

	require.Equal(t, uint32(64*1024), h.params.Memory)
	require.Equal(t, uint32(2), h.params.Time)
	require.Equal(t, uint8(2), h.params.Parallelism)
	require.Equal(t, uint32(16), h.params.SaltLength)
	require.Equal(t, uint32(32), h.params.KeyLength)
}
